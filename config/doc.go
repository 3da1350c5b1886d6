// Package config holds the runtime configuration of the pair relay.
//
// Every setting is a command-line flag with an environment variable fallback.
// A .env file in the working directory is loaded before flags are parsed, so
// the precedence is: flag, environment (including .env), default.
//
// Usage:
//
//	cmd := &cli.Command{
//		Flags: config.Flags(),
//		Action: func(ctx context.Context, cmd *cli.Command) error {
//			cfg := config.FromCommand(cmd)
//			if err := cfg.Validate(); err != nil {
//				return err
//			}
//			...
//		},
//	}
package config
