package vehicle

import (
	"strings"
	"time"

	"ecplacas/internal/registry"
	dErrors "ecplacas/pkg/domain-errors"
)

const minModelYear = 1950

// Decomposer maps raw registry payloads into normalized records. It
// tolerates partial data: missing numeric fields default to zero and a
// missing owner block yields Found=false. Only a payload without the
// vehicle identification block fails outright.
type Decomposer struct {
	policy ScorePolicy
	now    func() time.Time
}

// Option configures a Decomposer.
type Option func(*Decomposer)

// WithPolicy overrides the default score weighting.
func WithPolicy(p ScorePolicy) Option {
	return func(d *Decomposer) { d.policy = p }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(d *Decomposer) { d.now = now }
}

// NewDecomposer creates a decomposer with the default policy.
func NewDecomposer(opts ...Option) *Decomposer {
	d := &Decomposer{
		policy: DefaultScorePolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decompose builds the normalized record from the raw payload.
func (d *Decomposer) Decompose(raw *registry.RawPayload) (*Record, error) {
	if raw == nil || raw.Base.CodigoVehiculo == 0 {
		return nil, dErrors.New(dErrors.CodeDataError, "payload lacks the vehicle identification block")
	}

	now := d.now()
	rec := &Record{
		Vehicle:     decomposeVehicle(&raw.Base),
		Owner:       decomposeOwner(raw.Owner),
		GeneratedAt: now,
	}

	rec.Rubrics = decomposeRubrics(raw)
	rec.Payments = decomposePayments(raw.Payments)
	rec.Installments = decomposeInstallments(raw.Plan)
	rec.Debt = aggregate(rec.Rubrics, rec.Payments, rec.Installments, now)

	d.policy.analyze(rec, raw.Base.ProhibidoEnajenar, raw.Base.EstadoExoneracion, now)
	return rec, nil
}

func decomposeVehicle(base *registry.BaseVehicle) VehicleInfo {
	info := VehicleInfo{
		IdentificationCode: base.CodigoVehiculo,
		CamvNumber:         base.NumeroCamvCpn,
		VIN:                base.NumeroVin,
		EngineNumber:       base.NumeroMotor,
		Brand:              base.DescripcionMarca,
		Model:              base.DescripcionModelo,
		Country:            base.DescripcionPais,
		PrimaryColor:       base.ColorVehiculo1,
		SecondaryColor:     base.ColorVehiculo2,
		Displacement:       base.Cilindraje,
		BodyClass:          base.NombreClase,
		ServiceType:        base.DescripcionServicio,
		Canton:             base.DescripcionCanton,
		LastRegistration:   base.FechaUltimaMatricula,
		RegistrationExpiry: base.FechaCaducidadMatricula,
		PurchaseDate:       base.FechaCompraRegistro,
		LastInspection:     base.FechaRevision,
		LastYearPaid:       base.UltimoAnioPagado,
		TransferHold:       isAffirmative(base.ProhibidoEnajenar),
		ExemptionStatus:    base.EstadoExoneracion,
		Remarks:            base.Observacion,
	}
	if base.AnioAuto >= minModelYear {
		year := base.AnioAuto
		info.Year = &year
	}
	return info
}

func decomposeOwner(owner *registry.Owner) OwnerInfo {
	if owner == nil || owner.Name == "" {
		return OwnerInfo{Found: false}
	}
	return OwnerInfo{Found: true, Name: owner.Name, NationalID: owner.Cedula}
}

func decomposeRubrics(raw *registry.RawPayload) []DebtRubric {
	if len(raw.Rubrics) == 0 {
		return nil
	}

	rubrics := make([]DebtRubric, 0, len(raw.Rubrics))
	for _, r := range raw.Rubrics {
		rubric := DebtRubric{
			Code:        r.CodigoRubro,
			Description: r.DescripcionRubro,
			Beneficiary: r.NombreCortoBeneficiario,
			Amount:      r.ValorRubro,
			YearFrom:    r.AnioDesdePago,
			YearTo:      r.AnioHastaPago,
			Category:    classifyRubric(r.DescripcionRubro),
			Priority:    classifyPriority(r.ValorRubro),
		}
		for _, c := range raw.Components[r.CodigoRubro] {
			rubric.Components = append(rubric.Components, DebtComponent{
				Code:         c.CodigoComponente,
				Description:  c.DescripcionComponente,
				Type:         classifyComponent(c.CodigoComponente, c.DescripcionComponente),
				Amount:       c.ValorComponente,
				FiscalPeriod: c.PeriodoFiscal,
			})
		}
		rubrics = append(rubrics, rubric)
	}
	return rubrics
}

func decomposePayments(payments []registry.Payment) []Payment {
	if len(payments) == 0 {
		return nil
	}
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, Payment{
			Code:   p.CodigoRecaudacion,
			Date:   p.FechaDePago,
			Amount: p.Monto,
			Method: p.FormaPago,
		})
	}
	return out
}

func decomposeInstallments(plan []registry.Installment) []Installment {
	if len(plan) == 0 {
		return nil
	}
	out := make([]Installment, 0, len(plan))
	for _, i := range plan {
		out = append(out, Installment{
			Number:       i.NumeroCuota,
			FiscalPeriod: i.PeriodoFiscal,
			Status:       classifyInstallment(i.EstadoPago),
			Amount:       i.TotalCuota,
		})
	}
	return out
}

// aggregate sums component amounts by type and folds in payment history and
// the payment plan. Only positive amounts feed the debt total; prescriptions
// may be negative and are tracked separately as credits.
func aggregate(rubrics []DebtRubric, payments []Payment, installments []Installment, now time.Time) DebtSummary {
	var d DebtSummary
	d.PendingRubrics = len(rubrics)

	for _, rubric := range rubrics {
		for _, c := range rubric.Components {
			switch {
			case c.Type == ComponentPrescription:
				d.TotalPrescriptions += c.Amount
			case c.Amount <= 0:
				continue
			case c.Type == ComponentTax:
				d.TotalTaxes += c.Amount
			case c.Type == ComponentFee:
				d.TotalFees += c.Amount
			case c.Type == ComponentInterest:
				d.TotalInterest += c.Amount
			case c.Type == ComponentFine:
				d.TotalFines += c.Amount
			}
			if c.Amount > 0 {
				d.TotalDebt += c.Amount
			}
		}
	}

	currentYear := now.Format("2006")
	years := make(map[string]struct{})
	for _, p := range payments {
		d.TotalPaid += p.Amount
		if len(p.Date) >= 4 {
			years[p.Date[:4]] = struct{}{}
			if strings.HasPrefix(p.Date, currentYear) {
				d.PaymentsLastYear += p.Amount
			}
		}
	}
	if len(years) > 0 {
		d.AvgAnnualPayment = d.TotalPaid / float64(len(years))
	}

	for _, i := range installments {
		if i.Status == InstallmentOverdue && i.Amount > 0 {
			d.OverdueInstallments += i.Amount
		}
	}
	return d
}

func classifyRubric(description string) RubricCategory {
	desc := strings.ToUpper(description)
	switch {
	case strings.Contains(desc, "IMPUESTO"):
		return CategoryTax
	case strings.Contains(desc, "TASA"):
		return CategoryFee
	case strings.Contains(desc, "MULTA"):
		return CategoryFine
	default:
		return CategoryOther
	}
}

func classifyPriority(amount float64) Priority {
	switch {
	case amount > 500:
		return PriorityHigh
	case amount > 100:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func classifyComponent(code, description string) ComponentType {
	text := strings.ToUpper(code + " " + description)
	switch {
	case strings.Contains(text, "IMPUESTO"):
		return ComponentTax
	case strings.Contains(text, "TASA"):
		return ComponentFee
	case strings.Contains(text, "INTERES"):
		return ComponentInterest
	case strings.Contains(text, "MULTA"):
		return ComponentFine
	case strings.Contains(text, "PRESCRIPCION"):
		return ComponentPrescription
	default:
		return ComponentOther
	}
}

func classifyInstallment(status string) InstallmentStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "VENCIDO", "VENCIDA":
		return InstallmentOverdue
	case "PAGADO", "PAGADA":
		return InstallmentPaid
	default:
		return InstallmentPending
	}
}

func isAffirmative(marker string) bool {
	switch strings.ToUpper(strings.TrimSpace(marker)) {
	case "SI", "SÍ", "YES":
		return true
	default:
		return false
	}
}
