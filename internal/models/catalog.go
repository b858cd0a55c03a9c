package models

// Catalog reference data. All monetary fields are int64 amounts in the
// smallest currency unit. The engine never mutates catalog entries; a
// booking snapshots the prices it was confirmed with.

type Package struct {
	ID              int64           `yaml:"id" json:"id"`
	Name            string          `yaml:"name" json:"name"`
	ServiceCategory ServiceCategory `yaml:"service_category" json:"service_category"`
	PackageType     PackageType     `yaml:"package_type" json:"package_type"`
	BasePrice       int64           `yaml:"base_price" json:"base_price"`
	DurationHours   int64           `yaml:"duration_hours" json:"duration_hours"`
	MaxPhotos       int64           `yaml:"max_photos,omitempty" json:"max_photos,omitempty"`
	MaxVideos       int64           `yaml:"max_videos,omitempty" json:"max_videos,omitempty"`
	Includes        []string        `yaml:"includes" json:"includes"`
	IsCustomizable  bool            `yaml:"is_customizable" json:"is_customizable"`
	IsActive        bool            `yaml:"is_active" json:"is_active"`
	AdvanceDays     int64           `yaml:"advance_days" json:"advance_days"`
}

type AddOn struct {
	ID          int64  `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	UnitPrice   int64  `yaml:"unit_price" json:"unit_price"`
	Description string `yaml:"description" json:"description"`
	IsActive    bool   `yaml:"is_active" json:"is_active"`
}

type Equipment struct {
	ID              int64  `yaml:"id" json:"id"`
	Name            string `yaml:"name" json:"name"`
	Description     string `yaml:"description" json:"description"`
	DailyRate       int64  `yaml:"daily_rate" json:"daily_rate"`
	SecurityDeposit int64  `yaml:"security_deposit" json:"security_deposit"`
	// StockQuantity is the size of the shared pool; rentals compete for
	// stock, individual units are not tracked.
	StockQuantity int64 `yaml:"stock_quantity" json:"stock_quantity"`
	AdvanceDays   int64 `yaml:"advance_days" json:"advance_days"`
	IsActive      bool  `yaml:"is_active" json:"is_active"`
}

type CateringService struct {
	ID               int64  `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	Description      string `yaml:"description" json:"description"`
	UnitPrice        int64  `yaml:"unit_price" json:"unit_price"`
	MinOrderQuantity int64  `yaml:"min_order_quantity" json:"min_order_quantity"`
	MaxOrderQuantity int64  `yaml:"max_order_quantity" json:"max_order_quantity"`
	AdvanceDays      int64  `yaml:"advance_days" json:"advance_days"`
	IsActive         bool   `yaml:"is_active" json:"is_active"`
}
