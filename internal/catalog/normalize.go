package catalog

import "strings"

// aliases maps spelling, diacritic and separator variants of a distortion
// label onto its catalog key. Labels missing here pass through unchanged.
var aliases = map[string]string{
	"felaketleştirme": "felaketleştirme",
	"felaketlestirme": "felaketleştirme",
	"zihin okuma":     "zihin okuma",
	"genelleme":       "genelleme",
	"kişiselleştirme": "kişiselleştirme",
	"kisisellestirme": "kişiselleştirme",
	"etiketleme":      "etiketleme",
	"ya hep ya hiç":   "ya hep ya hiç",
	"ya hep ya hic":   "ya hep ya hiç",
	"büyütme":         "büyütme/küçültme",
	"buyutme":         "büyütme/küçültme",
	"küçültme":        "büyütme/küçültme",
	"kucultme":        "büyütme/küçültme",
	"kehanetçilik":    "kehanetçilik",
	"kehanetcilik":    "kehanetçilik",
	"keyfi çıkarsama": "keyfi çıkarsama",
	"keyfi cikarsama": "keyfi çıkarsama",
	"meli malı":       "meli/malı düşünceleri",
	"meli/malı":       "meli/malı düşünceleri",
	"meli-malı":       "meli/malı düşünceleri",
}

// Dotted capital I lowercases to a plain i, never i plus a combining dot.
var dottedI = strings.NewReplacer("İ", "i")

// Normalize maps a free-text distortion label to its canonical catalog key.
// Underscores count as spaces and runs of whitespace collapse, so
// "zihin_okuma", "Zihin  Okuma" and "zihin okuma" resolve identically.
func Normalize(distortionType string) string {
	s := strings.ToLower(dottedI.Replace(distortionType))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")

	if key, ok := aliases[s]; ok {
		return key
	}
	return s
}
