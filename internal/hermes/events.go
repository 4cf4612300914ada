package hermes

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/zihin/internal/analysis"
)

const (
	// SubjectAnalysisCompleted carries analysis.Completed payloads.
	SubjectAnalysisCompleted = "zihin.analysis.completed"
	// SubjectAgentRegistered is announced once at startup.
	SubjectAgentRegistered = "zihin.agent.registered"
	// IndexerQueue is the queue group of history indexers.
	IndexerQueue = "zihin-indexer"
)

// AgentRegistered announces a running service instance.
type AgentRegistered struct {
	InstanceID string `json:"instance_id"`
	Port       string `json:"port"`
	Provider   string `json:"provider"`
	VectorMode string `json:"vector_mode"`
	Timestamp  string `json:"timestamp"`
}

// NewAgentRegistered fills the instance id and timestamp.
func NewAgentRegistered(port, provider, vectorMode string, now time.Time) AgentRegistered {
	return AgentRegistered{
		InstanceID: uuid.NewString(),
		Port:       port,
		Provider:   provider,
		VectorMode: vectorMode,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
}

// publisher is the part of Client the sink needs.
type publisher interface {
	Publish(subject string, data any) error
}

// AnalysisSink publishes completed analyses onto the bus. Publish only
// buffers, so AnalysisCompleted does not block on the network.
type AnalysisSink struct {
	pub    publisher
	logger *slog.Logger
}

func NewAnalysisSink(pub publisher, logger *slog.Logger) *AnalysisSink {
	return &AnalysisSink{pub: pub, logger: logger}
}

func (s *AnalysisSink) AnalysisCompleted(evt analysis.Completed) {
	if err := s.pub.Publish(SubjectAnalysisCompleted, evt); err != nil {
		s.logger.Warn("failed to publish analysis event", "entry_id", evt.EntryID, "user_id", evt.UserID, "error", err)
	}
}
