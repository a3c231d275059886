package models

// MenuEntry is the cafeteria main dish for one day. A nil MainDish means the
// school publishes no menu for that day.
type MenuEntry struct {
	Date     string  `json:"date"`
	MainDish *string `json:"mainDish"`
}
