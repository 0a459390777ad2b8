package indexer

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// StartSchedule runs periodic sweep passes over a project on a cron
// expression. The sweep is non-forced: transcripts already indexed in
// this process are skipped. Returns a stop function.
func (ix *Indexer) StartSchedule(expr, projectPath string) (func(), error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("invalid reindex schedule: %w", err)
	}

	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		if _, err := ix.IndexProject(context.Background(), projectPath, false); err != nil {
			ix.logger.Warn().Err(err).Str("project", projectPath).Msg("Scheduled reindex failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reindex: %w", err)
	}

	c.Start()
	ix.logger.Info().Str("schedule", expr).Str("project", projectPath).Msg("Reindex schedule started")

	return func() {
		<-c.Stop().Done()
	}, nil
}
