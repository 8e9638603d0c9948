package receipts

import "time"

// ExtractedReceipt is the structured output of an upstream receipt extractor.
// Extraction itself happens outside this system; callers submit the result.
type ExtractedReceipt struct {
	VendorName string          `json:"vendor_name" validate:"required,max=200"`
	Date       time.Time       `json:"date" validate:"required"`
	Subtotal   float64         `json:"subtotal" validate:"gte=0"`
	TaxAmount  float64         `json:"tax_amount" validate:"gte=0"`
	TipAmount  float64         `json:"tip_amount" validate:"gte=0"`
	Total      float64         `json:"total" validate:"required,gt=0"`
	Lines      []ExtractedLine `json:"lines" validate:"required,min=1,dive"`
}

// ExtractedLine is one purchased item on the receipt. Category is the
// extractor's guess and seeds expense-account classification.
type ExtractedLine struct {
	Description string  `json:"description" validate:"required,max=500"`
	Category    string  `json:"category" validate:"max=200"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Amount      float64 `json:"amount" validate:"gte=0"`
}
