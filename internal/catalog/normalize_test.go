package catalog

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"zihin okuma", "zihin okuma"},
		{"zihin_okuma", "zihin okuma"},
		{"Zihin Okuma", "zihin okuma"},
		{"  ZIHIN   OKUMA ", "zihin okuma"},
		{"felaketlestirme", "felaketleştirme"},
		{"Felaketleştirme", "felaketleştirme"},
		{"KİŞİSELLEŞTİRME", "kişiselleştirme"},
		{"kisisellestirme", "kişiselleştirme"},
		{"ya hep ya hic", "ya hep ya hiç"},
		{"Ya_Hep_Ya_Hiç", "ya hep ya hiç"},
		{"büyütme", "büyütme/küçültme"},
		{"kucultme", "büyütme/küçültme"},
		{"Büyütme/Küçültme", "büyütme/küçültme"},
		{"kehanetcilik", "kehanetçilik"},
		{"keyfi cikarsama", "keyfi çıkarsama"},
		{"meli-malı", "meli/malı düşünceleri"},
		{"meli malı", "meli/malı düşünceleri"},
		{"öfke", "öfke"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
