package registry

// Raw upstream payloads. Field tags mirror the registry's JSON exactly; all
// interpretation happens downstream, so these structs stay dumb carriers.

// BaseVehicle is the registry's base record for a plate.
type BaseVehicle struct {
	CodError                string  `json:"codError,omitempty"`
	MensajeError            string  `json:"mensajeError,omitempty"`
	CodigoVehiculo          int64   `json:"codigoVehiculo"`
	NumeroCamvCpn           string  `json:"numeroCamvCpn"`
	NumeroVin               string  `json:"numeroVin,omitempty"`
	NumeroMotor             string  `json:"numeroMotor,omitempty"`
	DescripcionMarca        string  `json:"descripcionMarca"`
	DescripcionModelo       string  `json:"descripcionModelo"`
	AnioAuto                int     `json:"anioAuto"`
	DescripcionPais         string  `json:"descripcionPais"`
	ColorVehiculo1          string  `json:"colorVehiculo1"`
	ColorVehiculo2          string  `json:"colorVehiculo2"`
	Cilindraje              string  `json:"cilindraje"`
	NombreClase             string  `json:"nombreClase"`
	FechaUltimaMatricula    string  `json:"fechaUltimaMatricula"`
	FechaCaducidadMatricula string  `json:"fechaCaducidadMatricula"`
	FechaCompraRegistro     string  `json:"fechaCompraRegistro"`
	FechaRevision           string  `json:"fechaRevision"`
	DescripcionCanton       string  `json:"descripcionCanton"`
	DescripcionServicio     string  `json:"descripcionServicio"`
	UltimoAnioPagado        int     `json:"ultimoAnioPagado"`
	ProhibidoEnajenar       string  `json:"prohibidoEnajenar"`
	EstadoExoneracion       string  `json:"estadoExoneracion"`
	Observacion             string  `json:"observacion"`
	AplicaCuota             bool    `json:"aplicaCuota"`
	MensajeMotivoAuto       string  `json:"mensajeMotivoAuto"`
	TipoVehiculo            string  `json:"tipoVehiculo"`
	Total                   float64 `json:"total"`
}

// DebtRubric is one outstanding charge against the vehicle.
type DebtRubric struct {
	CodigoRubro             int64   `json:"codigoRubro"`
	DescripcionRubro        string  `json:"descripcionRubro"`
	NombreCortoBeneficiario string  `json:"nombreCortoBeneficiario"`
	ValorRubro              float64 `json:"valorRubro"`
	AnioDesdePago           int     `json:"anioDesdePago"`
	AnioHastaPago           int     `json:"anioHastaPago"`
	PeriodoFiscal           string  `json:"periodoFiscal"`
}

// DebtComponent is one line item inside a rubric.
type DebtComponent struct {
	CodigoComponente      string  `json:"codigoComponente"`
	DescripcionComponente string  `json:"descripcionComponente"`
	ValorComponente       float64 `json:"valorComponente"`
	PeriodoFiscal         string  `json:"periodoFiscal"`
}

// Payment is one settled collection for the plate.
type Payment struct {
	CodigoRecaudacion string  `json:"codigoRecaudacion"`
	FechaDePago       string  `json:"fechaDePago"`
	Monto             float64 `json:"monto"`
	FormaPago         string  `json:"formaPago"`
}

// paymentsEnvelope covers the two shapes the payments endpoint returns:
// a bare array or {"data": [...]}.
type paymentsEnvelope struct {
	Data []Payment `json:"data"`
}

// Installment is one scheduled payment of the environmental-tax (IACV)
// exceptional payment plan.
type Installment struct {
	NumeroCuota   string  `json:"numeroCuota"`
	PeriodoFiscal string  `json:"periodoFiscal"`
	EstadoPago    string  `json:"estadoPago"`
	TotalCuota    float64 `json:"totalCuota"`
}

// Owner is the holder record from the owner lookup service.
type Owner struct {
	Name   string `json:"name"`
	Cedula string `json:"cedula"`
}

type ownerEnvelope struct {
	Data *Owner `json:"data"`
}

// RawPayload bundles everything fetched for one plate before decomposition.
type RawPayload struct {
	Base       BaseVehicle               `json:"base"`
	Rubrics    []DebtRubric              `json:"rubrics"`
	Components map[int64][]DebtComponent `json:"components"`
	Payments   []Payment                 `json:"payments"`
	Plan       []Installment             `json:"plan,omitempty"`
	Owner      *Owner                    `json:"owner,omitempty"`
}
