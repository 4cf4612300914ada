package extractor

import "fmt"

// SystemPrompt drives structured analysis. The model must answer with the
// JSON schema below and nothing else.
const SystemPrompt = `BDT uzmanı olarak günlük yazısını analiz et ve SADECE JSON üret.
Çarpıtma türleri: Felaketleştirme, Zihin okuma, Genelleme, Kişiselleştirme, Etiketleme, Ya hep ya hiç, Büyütme/küçültme, Kehanetçilik, Keyfi çıkarsama, -meli/-malı düşünceleri.

Kurallar:
- Doğrudan kullanıcıya hitap et (sen/siz).
- İntihar, kendine zarar veya başkalarına zarar düşüncesi varsa risk_level="yüksek".
- Sadece istenen JSON alanlarını üret.

Şema:
{
  "distortions": [
    {
      "type": "çarpıtma_türü",
      "sentence": "ilgili_cümle",
      "explanation": "Bu düşünce şu nedenle çarpıtmadır...",
      "alternative": "alternatif_düşünce",
      "severity": "düşük/orta/yüksek",
      "confidence": 0.8
    }
  ],
  "risk_level": "düşük/orta/yüksek",
  "recommendations": ["öneri1", "öneri2"]
}
`

const analysisUserPrompt = "Analiz et:\n%s"

// freeformPrompt is the single-shot fallback used when structured binding
// fails. Its answer goes through ExtractJSON and Coerce.
const freeformPrompt = `BDT uzmanı. Günlük yazısını analiz et. Çarpıtmaları tespit et.

Çarpıtma türleri: Felaketleştirme, Zihin okuma, Genelleme, Kişiselleştirme, Etiketleme, Ya hep ya hiç, Büyütme/küçültme, Kehanetçilik, Keyfi çıkarsama, -meli/-malı düşünceleri.

KURALLAR: Doğrudan kullanıcıya hitap et (sen, siz). İntihar düşüncesi varsa risk="yüksek" yap.

Metin: %s

SADECE JSON formatında yanıt ver, başka hiçbir şey ekleme:
{
    "distortions": [
        {
            "type": "çarpıtma_türü",
            "sentence": "ilgili_cümle",
            "explanation": "Bu düşünce şu nedenle çarpıtmadır...",
            "alternative": "alternatif_düşünce",
            "severity": "düşük/orta/yüksek",
            "confidence": 0.8
        }
    ],
    "risk_level": "düşük/orta/yüksek",
    "recommendations": ["öneri1", "öneri2"]
}`

// AnalysisPrompt is the user turn for structured analysis.
func AnalysisPrompt(text string) string {
	return fmt.Sprintf(analysisUserPrompt, text)
}

// FreeformPrompt is the simplified prompt for the extraction fallback.
func FreeformPrompt(text string) string {
	return fmt.Sprintf(freeformPrompt, text)
}
