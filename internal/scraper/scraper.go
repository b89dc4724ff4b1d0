package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LabelCleaner приводит текст опции к каноничному виду перед сравнением
type LabelCleaner interface {
	Clean(label string) string
}

type Scraper struct {
	selectors *Selectors
	cleaner   LabelCleaner
}

func NewScraper(selectors *Selectors, cleaner LabelCleaner) *Scraper {
	return &Scraper{
		selectors: selectors,
		cleaner:   cleaner,
	}
}

// ExtractItems возвращает подписи всех опций документа в порядке следования.
// Пустой список без ошибки - валидный результат (на странице нет опций).
func (s *Scraper) ExtractItems(body []byte) (ItemList, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	scope := doc.Selection
	if s.selectors.Container != "" {
		scope = doc.Find(s.selectors.Container)
	}

	items := ItemList{}
	scope.Find(s.selectors.Item).Each(func(_ int, sel *goquery.Selection) {
		label := strings.TrimSpace(sel.Text())
		if s.cleaner != nil {
			label = s.cleaner.Clean(label)
		}
		if label == "" || s.skipped(label) {
			return
		}
		items = append(items, label)
	})

	return items, nil
}

// CountMatches - сколько узлов находит селектор без фильтрации (для диагностики в check)
func (s *Scraper) CountMatches(body []byte) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to parse HTML: %w", err)
	}
	scope := doc.Selection
	if s.selectors.Container != "" {
		scope = doc.Find(s.selectors.Container)
	}
	return scope.Find(s.selectors.Item).Length(), nil
}

func (s *Scraper) skipped(label string) bool {
	for _, skip := range s.selectors.Skip {
		if label == skip {
			return true
		}
	}
	return false
}
