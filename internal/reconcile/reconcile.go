// Package reconcile сравнивает два снимка списка опций и готовит текст отчёта.
package reconcile

import (
	"github.com/antzucaro/matchr"

	"carwatch/internal/scraper"
)

type ChangeSet struct {
	// Added - элементы current, которых нет в prior, в порядке current
	Added scraper.ItemList
	// Removed - элементы prior, которых нет в current, в порядке prior
	Removed scraper.ItemList
}

// Rename - подсказка: удалённая подпись похожа на добавленную.
// На Added/Removed не влияет.
type Rename struct {
	From       string
	To         string
	Similarity float64
}

// Diff сравнивает списки по точному совпадению строк. Позиции не учитываются.
func Diff(prior, current scraper.ItemList) ChangeSet {
	priorSet := toSet(prior)
	currentSet := toSet(current)

	cs := ChangeSet{
		Added:   scraper.ItemList{},
		Removed: scraper.ItemList{},
	}
	for _, item := range current {
		if _, ok := priorSet[item]; !ok {
			cs.Added = append(cs.Added, item)
		}
	}
	for _, item := range prior {
		if _, ok := currentSet[item]; !ok {
			cs.Removed = append(cs.Removed, item)
		}
	}
	return cs
}

// Empty - true, если уведомлять не о чем
func (cs ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Removed) == 0
}

// Renames жадно сопоставляет удалённые подписи с добавленными по Jaro-Winkler.
// threshold <= 0 отключает поиск.
func (cs ChangeSet) Renames(threshold float64) []Rename {
	if threshold <= 0 || len(cs.Added) == 0 || len(cs.Removed) == 0 {
		return nil
	}

	used := make(map[int]bool, len(cs.Added))
	var renames []Rename
	for _, from := range cs.Removed {
		best, bestScore := -1, threshold
		for i, to := range cs.Added {
			if used[i] {
				continue
			}
			if score := matchr.JaroWinkler(from, to, false); score >= bestScore {
				best, bestScore = i, score
			}
		}
		if best >= 0 {
			used[best] = true
			renames = append(renames, Rename{From: from, To: cs.Added[best], Similarity: bestScore})
		}
	}
	return renames
}

func toSet(items scraper.ItemList) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
