package model

// Category is the closed set of product categories an item can be ordered under.
type Category string

const (
	CategoryStarters     Category = "STARTERS"
	CategoryBurgers      Category = "BURGERS"
	CategorySandwiches   Category = "SANDWICHES"
	CategorySalads       Category = "SALADS"
	CategoryHotDogs      Category = "HOT_DOGS"
	CategoryCasados      Category = "CASADOS"
	CategoryBrunch       Category = "BRUNCH"
	CategoryCocktails    Category = "COCKTAILS"
	CategoryWinesBeers   Category = "WINES_BEERS"
	CategoryShots        Category = "SHOTS"
	CategoryNonAlcoholic Category = "NON_ALCOHOLIC"
	CategoryCoffee       Category = "COFFEE"
	CategoryDesserts     Category = "DESSERTS"
	CategoryExtras       Category = "EXTRAS"
)

// Categories lists every category in menu order.
var Categories = []Category{
	CategoryStarters,
	CategoryBurgers,
	CategorySandwiches,
	CategorySalads,
	CategoryHotDogs,
	CategoryCasados,
	CategoryBrunch,
	CategoryCocktails,
	CategoryWinesBeers,
	CategoryShots,
	CategoryNonAlcoholic,
	CategoryCoffee,
	CategoryDesserts,
	CategoryExtras,
}

var categoryLabels = map[Category]string{
	CategoryStarters:     "Para Empezar",
	CategoryBurgers:      "Hamburguesas",
	CategorySandwiches:   "Sandwiches",
	CategorySalads:       "Ensaladas",
	CategoryHotDogs:      "Hot Dogs",
	CategoryCasados:      "Casados",
	CategoryBrunch:       "Brunch",
	CategoryCocktails:    "Cócteles",
	CategoryWinesBeers:   "Birras y Vinos",
	CategoryShots:        "Shots",
	CategoryNonAlcoholic: "Refrescos",
	CategoryCoffee:       "Café",
	CategoryDesserts:     "Postres",
	CategoryExtras:       "Extras",
}

// DrinkCategories are the categories served from the bar.
var DrinkCategories = []Category{
	CategoryCocktails,
	CategoryWinesBeers,
	CategoryShots,
	CategoryCoffee,
	CategoryNonAlcoholic,
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label is the name shown on the menu and the settings screen.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) IsDrink() bool {
	for _, d := range DrinkCategories {
		if d == c {
			return true
		}
	}
	return false
}
