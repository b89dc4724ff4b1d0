package reconcile

import (
	"fmt"
	"strings"

	"carwatch/internal/scraper"
)

const bullet = "• "

type ReportOptions struct {
	RenameThreshold float64
}

// FormatReport собирает сообщение об изменениях: заголовок, блоки добавленных и удалённых
// (только непустые), подсказки о переименованиях и полный текущий список в конце.
func FormatReport(cs ChangeSet, current scraper.ItemList, opts ReportOptions) string {
	var b strings.Builder

	b.WriteString("🔔 Changement détecté !\n")

	if len(cs.Added) > 0 {
		b.WriteString("🟢 Ajoutés :\n")
		writeBullets(&b, cs.Added)
	}
	if len(cs.Removed) > 0 {
		b.WriteString("🔴 Retirés :\n")
		writeBullets(&b, cs.Removed)
	}
	if renames := cs.Renames(opts.RenameThreshold); len(renames) > 0 {
		b.WriteString("✏️ Probablement renommés :\n")
		for _, r := range renames {
			fmt.Fprintf(&b, "%s%s → %s\n", bullet, r.From, r.To)
		}
	}

	b.WriteString("📋 Liste actuelle :\n")
	if len(current) == 0 {
		b.WriteString("(vide)")
	} else {
		writeBullets(&b, current)
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatHeartbeat - сообщение о запуске наблюдения
func FormatHeartbeat(count int) string {
	return fmt.Sprintf("🚀 Surveillance lancée – %d voitures détectées.", count)
}

// FormatFailure - сообщение оператору о неудачном запуске
func FormatFailure(err error) string {
	return fmt.Sprintf("⚠️ Erreur : %v", err)
}

func writeBullets(b *strings.Builder, items scraper.ItemList) {
	for _, item := range items {
		b.WriteString(bullet)
		b.WriteString(item)
		b.WriteString("\n")
	}
}
