package model

// Column names of the cleaned table. These are the headers written to the
// cleaned CSV and the names the prediction lifecycle selects features by.
const (
	ColYear             = "annee"
	ColSector           = "secteur_geographique"
	ColNeighborhoodID   = "numero_quartier"
	ColNeighborhoodName = "nom_quartier"
	ColRooms            = "nombre_pieces_principales"
	ColEra              = "epoque_construction"
	ColFurnished        = "type_location"
	ColRentRef          = "loyers_reference"
	ColRentMax          = "loyers_majores"
	ColRentMin          = "loyers_minores"
	ColCity             = "ville"
	ColInseeCode        = "numero_insee"
	ColGeoShape         = "geo_shape"
	ColGeoPoint         = "geo_point_2d"
	ColGeometry         = "geometry"
)

// RenameMap maps raw export column names to cleaned column names. Names that
// are already cleaned map to themselves so renaming twice is a no-op.
var RenameMap = map[string]string{
	"annee":               ColYear,
	"id_zone":             ColSector,
	"id_quartier":         ColNeighborhoodID,
	"nom_quartier":        ColNeighborhoodName,
	"piece":               ColRooms,
	"epoque":              ColEra,
	"meuble_txt":          ColFurnished,
	"ref":                 ColRentRef,
	"max":                 ColRentMax,
	"min":                 ColRentMin,
	"ville":               ColCity,
	"code_grand_quartier": ColInseeCode,
	"geo_shape":           ColGeoShape,
	"geo_point_2d":        ColGeoPoint,

	ColSector:           ColSector,
	ColNeighborhoodID:   ColNeighborhoodID,
	ColRooms:            ColRooms,
	ColEra:              ColEra,
	ColFurnished:        ColFurnished,
	ColRentRef:          ColRentRef,
	ColRentMax:          ColRentMax,
	ColRentMin:          ColRentMin,
	ColInseeCode:        ColInseeCode,
}

// NumericColumns are imputed with the column mean and coerced to float64.
var NumericColumns = []string{ColRentRef, ColRentMax, ColRentMin, ColRooms}

// ScaledColumns are the rent bounds the optional scalers operate on.
var ScaledColumns = []string{ColRentMax, ColRentMin}

// CleanedHeader is the column order of the persisted cleaned table.
var CleanedHeader = []string{
	ColYear, ColSector, ColNeighborhoodID, ColNeighborhoodName, ColRooms,
	ColEra, ColFurnished, ColRentRef, ColRentMax, ColRentMin, ColCity,
	ColInseeCode, ColGeoShape, ColGeoPoint, ColGeometry,
}
