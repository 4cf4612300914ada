package analysis

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

// CrisisMessage leads the recommendations of every high-risk analysis.
const CrisisMessage = "Kriz belirtileri tespit edildi. Lütfen en yakın acil hattı ile iletişime geçin ve güvendiğiniz birine haber verin. Türkiye için 112 Acil."

// NoDistortionTip is the single suggestion when nothing was detected.
const NoDistortionTip = "Herhangi bir bilişsel çarpıtma tespit edilmedi. Düşünceleriniz dengeli görünüyor."

// tips are matched in order against the normalized distortion type.
var tips = []struct {
	fragment string
	tip      string
}{
	{"felaket", "Geleceği tahmin etmek yerine, şu ana odaklanmayı deneyin."},
	{"genelle", "Tek bir olaydan genel sonuçlar çıkarmak yerine, her durumu ayrı değerlendirin."},
	{"zihin okuma", "Başkalarının düşüncelerini tahmin etmek yerine, açık iletişim kurmayı deneyin."},
	{"kişiselle", "Her şeyi kendinize mal etmek yerine, olayların farklı nedenleri olabileceğini düşünün."},
}

// Suggestions derives one tip per finding from the fixed table, keeping the
// first occurrence of each tip.
func Suggestions(distortions []extractor.DistortionFinding) []string {
	if len(distortions) == 0 {
		return []string{NoDistortionTip}
	}

	seen := make(map[string]bool, len(distortions))
	out := make([]string, 0, len(distortions))
	for _, d := range distortions {
		tip := tipFor(d.Type)
		if seen[tip] {
			continue
		}
		seen[tip] = true
		out = append(out, tip)
	}
	return out
}

func tipFor(distortionType string) string {
	key := catalog.Normalize(distortionType)
	for _, t := range tips {
		if strings.Contains(key, t.fragment) {
			return t.tip
		}
	}
	label := strings.TrimSpace(distortionType)
	if label == "" {
		label = "bilinmeyen"
	}
	return fmt.Sprintf("'%s' için: Daha dengeli ve gerçekçi bir bakış açısı geliştirmeye çalışın.", label)
}

// WithCrisisMessage puts CrisisMessage first, exactly once.
func WithCrisisMessage(recs []string) []string {
	out := make([]string, 0, len(recs)+1)
	out = append(out, CrisisMessage)
	for _, r := range recs {
		if r != CrisisMessage {
			out = append(out, r)
		}
	}
	return out
}
