package domain

// MarkerStyle configures the invisible anchor marker that carries a label
// tooltip. It is passed explicitly to every marker the layer engine creates;
// there is no process-wide default icon.
type MarkerStyle struct {
	IconURL          string  `yaml:"icon_url" json:"icon_url"`
	ShadowURL        string  `yaml:"shadow_url" json:"shadow_url"`
	IconSize         [2]int  `yaml:"icon_size" json:"icon_size"`
	IconAnchor       [2]int  `yaml:"icon_anchor" json:"icon_anchor"`
	Opacity          float64 `yaml:"opacity" json:"opacity"`
	TooltipDirection string  `yaml:"tooltip_direction" json:"tooltip_direction"`
	TooltipClass     string  `yaml:"tooltip_class" json:"tooltip_class"`
}

// HeatStyle configures the heat layer.
type HeatStyle struct {
	Radius     int     `yaml:"radius" json:"radius"`
	Blur       int     `yaml:"blur" json:"blur"`
	MaxZoom    int     `yaml:"max_zoom" json:"max_zoom"`
	MinOpacity float64 `yaml:"min_opacity" json:"min_opacity"`
}

// MapStyle groups the per-layer styles and the initial map view.
type MapStyle struct {
	Center      Coordinate  `yaml:"center" json:"center"`
	Zoom        int         `yaml:"zoom" json:"zoom"`
	Marker      MarkerStyle `yaml:"marker" json:"marker"`
	Heat        HeatStyle   `yaml:"heat" json:"heat"`
	TileURL     string      `yaml:"tile_url" json:"tile_url"`
	Attribution string      `yaml:"attribution" json:"attribution"`
}

// DefaultMapStyle returns the Busan view used when no style file is given.
func DefaultMapStyle() MapStyle {
	return MapStyle{
		Center: Coordinate{Lat: 35.1795543, Lng: 129.0756416},
		Zoom:   13,
		Marker: MarkerStyle{
			IconURL:          "/static/marker-icon.png",
			ShadowURL:        "/static/marker-shadow.png",
			IconSize:         [2]int{25, 41},
			IconAnchor:       [2]int{12, 41},
			Opacity:          0,
			TooltipDirection: "center",
			TooltipClass:     "bg-transparent border-0 shadow-none word-cloud-label",
		},
		Heat: HeatStyle{
			Radius:     25,
			Blur:       15,
			MaxZoom:    17,
			MinOpacity: 0.4,
		},
		TileURL:     "https://{s}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors",
	}
}
