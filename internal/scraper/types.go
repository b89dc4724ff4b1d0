package scraper

// ItemList - подписи опций в порядке документа. Дубликаты сохраняются.
type ItemList []string

// Contains проверяет вхождение по точному совпадению строки
func (l ItemList) Contains(item string) bool {
	for _, v := range l {
		if v == item {
			return true
		}
	}
	return false
}

type Selectors struct {
	// Container ограничивает поиск, например "select#model". Пусто - весь документ.
	Container string   `yaml:"container"`
	Item      string   `yaml:"item"`
	Skip      []string `yaml:"skip"`
}
