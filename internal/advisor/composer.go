// Package advisor builds the technique recommendation envelope: catalog and
// vector techniques, optional personalized advice, and next steps.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

// Freeformer produces plain text completions.
type Freeformer interface {
	Freeform(ctx context.Context, prompt string) (string, error)
}

// Composer writes short personalized advice through the generation layer.
type Composer struct {
	gen    Freeformer
	logger *slog.Logger
}

func NewComposer(gen Freeformer, logger *slog.Logger) *Composer {
	return &Composer{gen: gen, logger: logger}
}

// Personalize asks for two or three sentences of advice for userContext.
// history may be nil.
func (c *Composer) Personalize(ctx context.Context, userContext, distortionType string, history *retrieval.PatternSummary) (string, error) {
	out, err := c.gen.Freeform(ctx, personalizePrompt(userContext, distortionType, history))
	if err != nil {
		return "", fmt.Errorf("personalize: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("personalize: empty advice")
	}
	return out, nil
}

func personalizePrompt(userContext, distortionType string, history *retrieval.PatternSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kullanıcının günlük yazısı: %s\n\nÇarpıtma türü: %s\n\n", userContext, distortionType)
	if history != nil && history.TotalAnalyses > 0 {
		fmt.Fprintf(&b, "Kullanıcının geçmişi: toplam %d analiz", history.TotalAnalyses)
		if top := history.TopTypes(3); len(top) > 0 {
			fmt.Fprintf(&b, ", en sık görülen çarpıtmalar: %s", strings.Join(top, ", "))
		}
		b.WriteString(".\n\n")
	}
	b.WriteString(`Bu kullanıcı için kişiselleştirilmiş bir tavsiye yaz. Kullanıcının durumuna özel olarak:
1. Daha anlayışlı ve destekleyici bir ton kullan
2. Kullanıcının yaşadığı spesifik duruma atıfta bulun
3. Pratik ve uygulanabilir öneriler ver
4. Türkçe yaz ve doğrudan kullanıcıya hitap et (sen/siz)

Yanıtını 2-3 cümle ile sınırla.`)
	return b.String()
}
