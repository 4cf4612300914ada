package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

// Envelope sources.
const (
	SourceHybrid   = "hybrid"
	SourceCatalog  = "catalog"
	SourceFallback = "fallback"
)

const unknownAdvice = "Bu çarpıtma türü için özel teknikler geliştiriyoruz. Şimdilik genel BDT tekniklerini kullanabilirsiniz."

var (
	baseNextSteps = []string{
		"Önerilen tekniklerden birini seçin ve bugün uygulayın",
		"Haftada en az 3 kez bu teknikleri tekrarlayın",
		"İlerlemenizi günlüğünüzde takip edin",
		"Zorlandığınızda bir uzmandan destek almayı düşünün",
	}
	personalizedNextSteps = []string{
		"Bu kişiselleştirilmiş tavsiyeyi günlüğünüze not edin",
		"Önerilen tekniklerden en uygun olanını seçin",
		"Hafta boyunca bu tekniği düzenli olarak uygulayın",
		"İlerlemenizi takip etmek için günlük tutmaya devam edin",
	}
	unknownNextSteps = []string{
		"Günlük yazmaya devam edin",
		"Düşünce kalıplarınızı gözlemleyin",
		"Bir uzmandan destek almayı düşünün",
	}
)

// Request asks for techniques for one distortion type.
type Request struct {
	DistortionType string `json:"distortion_type"`
	UserContext    string `json:"user_context,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// Response is the technique envelope.
type Response struct {
	DistortionType        string                `json:"distortion_type"`
	DistortionName        string                `json:"distortion_name"`
	DistortionDescription string                `json:"distortion_description"`
	Techniques            []retrieval.Technique `json:"techniques"`
	PersonalizedAdvice    string                `json:"personalized_advice"`
	NextSteps             []string              `json:"next_steps"`
	Source                string                `json:"source"`
	GeneratedAt           string                `json:"generated_at"`
}

// MultipleResponse bundles envelopes for several distortion types.
type MultipleResponse struct {
	MultipleDistortions bool       `json:"multiple_distortions"`
	Techniques          []Response `json:"techniques"`
	Summary             string     `json:"summary"`
	Recommendation      string     `json:"recommendation"`
	GeneratedAt         string     `json:"generated_at"`
}

// DistortionList describes the catalog.
type DistortionList struct {
	Distortions      []string       `json:"distortions"`
	TechniqueSummary map[string]int `json:"technique_summary"`
	TotalTechniques  int            `json:"total_techniques"`
}

type Service struct {
	retriever *retrieval.Retriever
	composer  *Composer
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

// WithClock overrides the generated_at source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates the advisor. composer may be nil when no generation
// backend is configured; personalization then always takes the fallback.
func NewService(retriever *retrieval.Retriever, composer *Composer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{retriever: retriever, composer: composer, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetTechniques never fails. Unknown types get the generic fallback
// envelope and personalization errors get canned advice.
func (s *Service) GetTechniques(ctx context.Context, req Request) Response {
	key := catalog.Normalize(req.DistortionType)
	entry, ok := s.retriever.Catalog().Lookup(key)
	if !ok {
		return s.fallback(req.DistortionType)
	}

	techniques := s.retriever.FindTechniques(ctx, key, req.UserContext, retrieval.MaxTechniques)
	resp := Response{
		DistortionType:        entry.Key,
		DistortionName:        entry.Name,
		DistortionDescription: entry.Description,
		Techniques:            techniques,
		Source:                sourceOf(techniques),
		GeneratedAt:           s.timestamp(),
	}

	if strings.TrimSpace(req.UserContext) == "" {
		resp.PersonalizedAdvice = fmt.Sprintf("%s çarpıtması için özel teknikler hazırladık. Bu teknikleri günlük rutininize ekleyerek daha sağlıklı düşünce kalıpları geliştirebilirsiniz.", entry.Name)
		resp.NextSteps = clone(baseNextSteps)
		return resp
	}

	advice, err := s.personalize(ctx, req, entry)
	if err != nil {
		s.logger.Warn("personalization failed, using canned advice", "distortion_type", entry.Key, "error", err)
		resp.PersonalizedAdvice = fmt.Sprintf("%s çarpıtması için özel teknikler hazırladık.", entry.Name)
		resp.NextSteps = clone(baseNextSteps[:3])
		return resp
	}
	resp.PersonalizedAdvice = advice
	resp.NextSteps = clone(personalizedNextSteps)
	return resp
}

func (s *Service) personalize(ctx context.Context, req Request, entry catalog.Entry) (string, error) {
	if s.composer == nil {
		return "", fmt.Errorf("no generation backend configured")
	}

	var history *retrieval.PatternSummary
	if req.UserID != "" && s.retriever.Available() {
		p, err := s.retriever.UserPatterns(ctx, req.UserID)
		if err != nil {
			s.logger.Warn("user history unavailable for personalization", "user_id", req.UserID, "error", err)
		} else {
			history = &p
		}
	}
	return s.composer.Personalize(ctx, req.UserContext, entry.Key, history)
}

func (s *Service) fallback(distortionType string) Response {
	return Response{
		DistortionType:        distortionType,
		DistortionName:        catalog.UnknownName,
		DistortionDescription: catalog.UnknownDescription,
		Techniques:            []retrieval.Technique{{Technique: catalog.GenericTechnique, Source: retrieval.SourceCatalog}},
		PersonalizedAdvice:    unknownAdvice,
		NextSteps:             clone(unknownNextSteps),
		Source:                SourceFallback,
		GeneratedAt:           s.timestamp(),
	}
}

// multipleConcurrency bounds the fan-out of GetMultiple.
const multipleConcurrency = 4

// GetMultiple builds one envelope per type concurrently, in input order.
func (s *Service) GetMultiple(ctx context.Context, types []string, userContext, userID string) MultipleResponse {
	out := make([]Response, len(types))
	var g errgroup.Group
	g.SetLimit(multipleConcurrency)
	for i, t := range types {
		g.Go(func() error {
			out[i] = s.GetTechniques(ctx, Request{DistortionType: t, UserContext: userContext, UserID: userID})
			return nil
		})
	}
	_ = g.Wait()

	return MultipleResponse{
		MultipleDistortions: true,
		Techniques:          out,
		Summary:             fmt.Sprintf("%d farklı çarpıtma türü için teknikler hazırlandı", len(types)),
		Recommendation:      "En sık karşılaştığınız çarpıtma türüne odaklanarak başlayın",
		GeneratedAt:         s.timestamp(),
	}
}

// Distortions lists the catalog keys and technique counts by name.
func (s *Service) Distortions() DistortionList {
	cat := s.retriever.Catalog()
	return DistortionList{
		Distortions:      cat.Keys(),
		TechniqueSummary: cat.Summary(),
		TotalTechniques:  cat.TotalTechniques(),
	}
}

func sourceOf(ts []retrieval.Technique) string {
	for _, t := range ts {
		if t.Source == retrieval.SourceVector {
			return SourceHybrid
		}
	}
	return SourceCatalog
}

func (s *Service) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
