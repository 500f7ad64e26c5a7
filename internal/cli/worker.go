package cli

import (
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/worker"
)

// workerCommand consumes offloaded layout jobs.
func (c *CLI) workerCommand() *cobra.Command {
	var (
		addr        string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume offloaded layout jobs from Redis",
		Long: `Consume offloaded layout jobs from Redis.

Sessions configured with the redis transport push large layouts onto a queue;
each worker pops jobs, runs the simulation and publishes the settled
positions back. Run as many workers as needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			if addr == "" {
				addr = c.cfg.Worker.RedisAddr
			}
			if addr == "" {
				return errors.New(errors.ErrCodeInvalidConfig, "no redis address: pass --redis or set worker.redis_addr")
			}
			client := redis.NewClient(&redis.Options{Addr: addr})
			defer client.Close()
			if err := client.Ping(ctx).Err(); err != nil {
				return errors.Wrap(errors.ErrCodeNetwork, err, "connect to redis at %s", addr)
			}

			srv := worker.NewServer(client, c.cfg.Worker.QueuePrefix, logger)
			if concurrency > 0 {
				srv.Concurrency = concurrency
			} else if c.cfg.Worker.Concurrency > 0 {
				srv.Concurrency = c.cfg.Worker.Concurrency
			}
			printInfo("Worker consuming %s on %s", srv.Prefix, addr)
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "redis", "", "redis address (default from config)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "parallel jobs (default: one per CPU)")
	return cmd
}
