package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"carwatch/internal/scraper"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateListHash генерирует SHA256 снимка списка.
// Формула: SHA256(item1\nitem2\n...), порядок учитывается - это отпечаток файла состояния.
func (g *Generator) GenerateListHash(items scraper.ItemList) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(item)
		b.WriteByte('\n')
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

// VerifyListHash проверяет соответствие хеша
func (g *Generator) VerifyListHash(expectedHash string, items scraper.ItemList) bool {
	return g.GenerateListHash(items) == expectedHash
}
