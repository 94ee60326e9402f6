package vehicle

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ScoreBand adjusts the score when the measured amount exceeds Above.
// Bands are evaluated in order; the first match wins.
type ScoreBand struct {
	Above  float64
	Adjust int
}

// ScorePolicy holds the weighting constants behind the fiscal score. The
// numbers encode one jurisdiction's fiscal rules, so they are injected
// rather than hardcoded; only clamping and monotonicity are structural.
type ScorePolicy struct {
	DebtBands        []ScoreBand
	FineBands        []ScoreBand
	InterestBands    []ScoreBand
	InstallmentBands []ScoreBand
	PaymentBands     []ScoreBand

	RecentPaymentBonus  int
	TransferHoldPenalty int

	// Prescriptions credit the score when they reduce debt: one point per
	// PrescriptionUnit of credit, capped at PrescriptionBonusCap.
	PrescriptionBonusCap int
	PrescriptionUnit     float64

	// Risk level floors on the final score.
	VeryLowMin  int
	LowMin      int
	ModerateMin int
	HighMin     int

	// Recommendation thresholds on the risk score (100 - score).
	NoActionMaxRisk int
	ReviewMaxRisk   int

	NoActionText     string
	ReviewText       string
	DoNotProceedText string

	// Market value estimation.
	BaseValue          float64
	AnnualDepreciation float64
	MinDepreciation    float64
	DebtDiscount       float64
	FloorValue         float64

	// Registration expiry warning window.
	ExpiryWarningDays int
}

// DefaultScorePolicy returns the production weighting.
func DefaultScorePolicy() ScorePolicy {
	return ScorePolicy{
		DebtBands: []ScoreBand{
			{Above: 2000, Adjust: -50},
			{Above: 1000, Adjust: -40},
			{Above: 500, Adjust: -25},
			{Above: 100, Adjust: -15},
			{Above: 0, Adjust: -5},
		},
		FineBands: []ScoreBand{
			{Above: 100, Adjust: -20},
			{Above: 0, Adjust: -10},
		},
		InterestBands: []ScoreBand{
			{Above: 50, Adjust: -15},
			{Above: 0, Adjust: -5},
		},
		InstallmentBands: []ScoreBand{
			{Above: 100, Adjust: -25},
			{Above: 50, Adjust: -20},
			{Above: 0, Adjust: -10},
		},
		PaymentBands: []ScoreBand{
			{Above: 2000, Adjust: 10},
			{Above: 1000, Adjust: 5},
		},
		RecentPaymentBonus:   5,
		TransferHoldPenalty:  -30,
		PrescriptionBonusCap: 10,
		PrescriptionUnit:     100,

		VeryLowMin:  95,
		LowMin:      80,
		ModerateMin: 60,
		HighMin:     40,

		NoActionMaxRisk:  20,
		ReviewMaxRisk:    60,
		NoActionText:     "No outstanding fiscal issues; clear for transfer",
		ReviewText:       "Review and settle pending debts before transfer",
		DoNotProceedText: "Do not proceed; significant fiscal exposure on this vehicle",

		BaseValue:          15000,
		AnnualDepreciation: 0.08,
		MinDepreciation:    0.1,
		DebtDiscount:       0.9,
		FloorValue:         1000,

		ExpiryWarningDays: 30,
	}
}

// score computes the fiscal health score in [0,100] from the aggregated
// totals. Higher is healthier.
func (p ScorePolicy) score(d *DebtSummary, transferHold bool) int {
	score := 100

	score += firstBand(p.DebtBands, d.TotalDebt)
	score += firstBand(p.FineBands, d.TotalFines)
	score += firstBand(p.InterestBands, d.TotalInterest)
	score += firstBand(p.InstallmentBands, d.OverdueInstallments)
	score += firstBand(p.PaymentBands, d.TotalPaid)

	if d.PaymentsLastYear > 0 {
		score += p.RecentPaymentBonus
	}
	if transferHold {
		score += p.TransferHoldPenalty
	}
	if d.TotalPrescriptions < 0 && p.PrescriptionUnit > 0 {
		bonus := int(math.Abs(d.TotalPrescriptions) / p.PrescriptionUnit)
		if bonus > p.PrescriptionBonusCap {
			bonus = p.PrescriptionBonusCap
		}
		score += bonus
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func firstBand(bands []ScoreBand, amount float64) int {
	for _, band := range bands {
		if amount > band.Above {
			return band.Adjust
		}
	}
	return 0
}

func (p ScorePolicy) riskLevel(score int) RiskLevel {
	switch {
	case score >= p.VeryLowMin:
		return RiskVeryLow
	case score >= p.LowMin:
		return RiskLow
	case score >= p.ModerateMin:
		return RiskModerate
	case score >= p.HighMin:
		return RiskHigh
	default:
		return RiskCritical
	}
}

func (p ScorePolicy) recommendation(riskScore int) string {
	switch {
	case riskScore <= p.NoActionMaxRisk:
		return p.NoActionText
	case riskScore <= p.ReviewMaxRisk:
		return p.ReviewText
	default:
		return p.DoNotProceedText
	}
}

// estimateValue approximates market value from the model year with flat
// annual depreciation, discounted when debt is outstanding.
func (p ScorePolicy) estimateValue(year *int, totalDebt float64, now time.Time) float64 {
	if year == nil || *year <= 0 {
		return 0
	}

	age := now.Year() - *year
	if age < 0 {
		age = 0
	}
	factor := math.Max(p.MinDepreciation, math.Pow(1-p.AnnualDepreciation, float64(age)))
	value := p.BaseValue * factor
	if totalDebt > 0 {
		value *= p.DebtDiscount
	}
	return math.Max(value, p.FloorValue)
}

// registrationStatus interprets the expiry date string ("DD-MM-YYYY", with
// an optional time suffix) against the warning window.
func (p ScorePolicy) registrationStatus(expiry string, now time.Time) (RegistrationStatus, *int) {
	if expiry == "" {
		return RegistrationIndeterminate, nil
	}

	datePart := expiry
	if i := strings.IndexByte(expiry, ' '); i > 0 {
		datePart = expiry[:i]
	}
	parsed, err := time.Parse("02-01-2006", datePart)
	if err != nil {
		return RegistrationIndeterminate, nil
	}

	days := int(parsed.Sub(now).Hours() / 24)
	switch {
	case days > p.ExpiryWarningDays:
		return RegistrationValid, &days
	case days > 0:
		return RegistrationExpiringSoon, &days
	default:
		return RegistrationExpired, &days
	}
}

// legalStatus applies the standing rules: indeterminate when the hold and
// exoneration markers are both absent, current only with zero debt and no
// hold, pending otherwise.
func legalStatus(d *DebtSummary, holdMarker, exemptionMarker string, transferHold bool) LegalStatus {
	if holdMarker == "" && exemptionMarker == "" {
		return LegalStatusIndeterminate
	}
	if transferHold || d.TotalDebt > 0 {
		return LegalStatusPending
	}
	return LegalStatusCurrent
}

// analyze fills the derived fields of the summary in place.
func (p ScorePolicy) analyze(rec *Record, holdMarker, exemptionMarker string, now time.Time) {
	d := &rec.Debt

	d.Score = p.score(d, rec.Vehicle.TransferHold)
	d.RiskScore = 100 - d.Score
	d.RiskLevel = p.riskLevel(d.Score)
	d.Recommendation = p.recommendation(d.RiskScore)
	d.LegalStatus = legalStatus(d, holdMarker, exemptionMarker, rec.Vehicle.TransferHold)
	d.EstimatedValue = p.estimateValue(rec.Vehicle.Year, d.TotalDebt, now)
	d.RegistrationStatus, d.DaysToExpiry = p.registrationStatus(rec.Vehicle.RegistrationExpiry, now)

	if d.TotalDebt > 0 {
		d.Recommendation = fmt.Sprintf("%s (outstanding debt $%.2f)", d.Recommendation, d.TotalDebt)
	}
}
