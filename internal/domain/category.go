package domain

import "time"

// Category is the closed vocabulary of problem classes used for routing.
type Category string

const (
	CategoryLighting Category = "Перегорела лампочка"
	CategoryWater    Category = "Проблема с водой"
	CategoryElevator Category = "Не работает лифт"
	CategoryOther    Category = "Другое"
)

// Categories lists every category in menu order.
var Categories = []Category{CategoryLighting, CategoryWater, CategoryElevator, CategoryOther}

var categoryCodes = map[string]Category{
	"light":    CategoryLighting,
	"water":    CategoryWater,
	"elevator": CategoryElevator,
	"other":    CategoryOther,
}

// Valid reports whether c belongs to the vocabulary.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FreeText reports whether the category requires a typed description.
func (c Category) FreeText() bool {
	return c == CategoryOther
}

// Code returns the short callback code for c.
func (c Category) Code() string {
	for code, cat := range categoryCodes {
		if cat == c {
			return code
		}
	}
	return ""
}

// CategoryFromCode resolves a callback code such as "water".
func CategoryFromCode(code string) (Category, bool) {
	c, ok := categoryCodes[code]
	return c, ok
}

// CategoryAssignment routes one category to one specialist handle.
type CategoryAssignment struct {
	ID        int64
	Category  Category
	Handle    string
	CreatedAt time.Time
}
