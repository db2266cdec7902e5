package contract

// Receipt payload keys as the model emits them.
const (
	FieldOrganization = "nombre_empresa"
	FieldSite         = "nombre_establecimiento"
	FieldPlot         = "nombre_chacra"
	FieldDriverName   = "nombre_conductor"
	FieldDriverID     = "cedula_conductor"
	FieldTruckPlate   = "matricula_camion"
	FieldTrailerPlate = "matricula_zorra"
	FieldWeight       = "peso_estimado_tn"
	FieldDestination  = "nombre_destino"
)

// RequiredFields lists every key a receipt draft must carry.
var RequiredFields = []string{
	FieldOrganization,
	FieldSite,
	FieldPlot,
	FieldDriverName,
	FieldDriverID,
	FieldTruckPlate,
	FieldWeight,
	FieldDestination,
}
