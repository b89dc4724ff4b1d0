package normalize

import (
	"regexp"
	"strings"

	"carwatch/internal/config"
)

var (
	lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
	spaces     = regexp.MustCompile(`\s+`)
)

type Normalizer struct {
	cfg *config.Config
}

func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Clean готовит подпись опции к сравнению и хранению.
// Переводы строк заменяются всегда: файл состояния хранит одну подпись на строку.
func (n *Normalizer) Clean(label string) string {
	label = lineBreaks.Replace(label)

	if n.cfg.Normalize.TrimNBSP {
		label = strings.ReplaceAll(label, "\u00A0", " ")
	}

	if n.cfg.Normalize.CollapseSpaces {
		label = spaces.ReplaceAllString(label, " ")
	}

	return strings.TrimSpace(label)
}
