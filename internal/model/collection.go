package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionVersion is written into every export file.
const CollectionVersion = "1.0"

// Collection is the versioned export/import document.
type Collection struct {
	Version    string       `json:"version"`
	ExportDate time.Time    `json:"exportDate"`
	ExportedBy string       `json:"exportedBy"`
	Wines      []SharedItem `json:"wines"`
}

// SharedItem is the portable form of an Item: no timestamps, price as a plain
// number and images only when the exporter asked for them.
type SharedItem struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Producer         string   `json:"producer"`
	Vintage          string   `json:"vintage"`
	Alcohol          string   `json:"alcohol"`
	Quantity         int      `json:"quantity"`
	Country          string   `json:"country"`
	Region           string   `json:"region"`
	Subregion        string   `json:"subregion"`
	Type             string   `json:"type"`
	Category         string   `json:"category"`
	Price            *float64 `json:"price,omitempty"`
	BottleSize       string   `json:"bottleSize"`
	ReadyToDrinkYear string   `json:"readyToDrinkYear"`
	BestBeforeYear   string   `json:"bestBeforeYear"`
	StorageLocation  string   `json:"storageLocation"`
	Rating           string   `json:"rating"`
	Remarks          string   `json:"remarks"`
	FrontImage       []byte   `json:"frontImage,omitempty"`
	BackImage        []byte   `json:"backImage,omitempty"`
}

// Share converts an item to its portable form.
func Share(item *Item, includeImages bool) SharedItem {
	s := SharedItem{
		ID:               item.ID,
		Name:             item.Name,
		Producer:         item.Producer,
		Vintage:          item.Vintage,
		Alcohol:          item.Alcohol,
		Quantity:         item.Quantity,
		Country:          item.Country,
		Region:           item.Region,
		Subregion:        item.Subregion,
		Type:             item.Type,
		Category:         item.Category,
		BottleSize:       item.BottleSize,
		ReadyToDrinkYear: item.ReadyToDrinkYear,
		BestBeforeYear:   item.BestBeforeYear,
		StorageLocation:  item.StorageLocation,
		Rating:           item.Rating,
		Remarks:          item.Remarks,
	}
	if item.Price != nil {
		f := item.Price.InexactFloat64()
		s.Price = &f
	}
	if includeImages {
		s.FrontImage = item.FrontImage
		s.BackImage = item.BackImage
	}
	return s
}

// Item converts the portable form back into an Item. Timestamps are left zero.
func (s *SharedItem) Item() Item {
	item := Item{
		ID:               s.ID,
		Name:             s.Name,
		Producer:         s.Producer,
		Vintage:          s.Vintage,
		Alcohol:          s.Alcohol,
		Quantity:         s.Quantity,
		Country:          s.Country,
		Region:           s.Region,
		Subregion:        s.Subregion,
		Type:             s.Type,
		Category:         s.Category,
		BottleSize:       s.BottleSize,
		ReadyToDrinkYear: s.ReadyToDrinkYear,
		BestBeforeYear:   s.BestBeforeYear,
		StorageLocation:  s.StorageLocation,
		Rating:           s.Rating,
		Remarks:          s.Remarks,
		FrontImage:       s.FrontImage,
		BackImage:        s.BackImage,
	}
	if s.Price != nil {
		p := decimal.NewFromFloat(*s.Price)
		item.Price = &p
	}
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	return item
}
