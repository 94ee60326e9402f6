// Package vehicle turns raw registry payloads into the normalized record
// served to callers, including the derived fiscal risk analysis.
package vehicle

import "time"

// LegalStatus summarizes the vehicle's fiscal standing.
type LegalStatus string

const (
	LegalStatusCurrent       LegalStatus = "CURRENT"
	LegalStatusPending       LegalStatus = "PENDING"
	LegalStatusIndeterminate LegalStatus = "INDETERMINATE"
)

// RegistrationStatus classifies the registration expiry date.
type RegistrationStatus string

const (
	RegistrationValid         RegistrationStatus = "VALID"
	RegistrationExpiringSoon  RegistrationStatus = "EXPIRING_SOON"
	RegistrationExpired       RegistrationStatus = "EXPIRED"
	RegistrationIndeterminate RegistrationStatus = "INDETERMINATE"
)

// RiskLevel buckets the overall fiscal score.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "VERY_LOW"
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RubricCategory classifies a debt rubric by its description.
type RubricCategory string

const (
	CategoryTax   RubricCategory = "TAX"
	CategoryFee   RubricCategory = "FEE"
	CategoryFine  RubricCategory = "FINE"
	CategoryOther RubricCategory = "OTHER"
)

// Priority ranks a rubric by outstanding amount.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ComponentType classifies a debt line item.
type ComponentType string

const (
	ComponentTax          ComponentType = "TAX"
	ComponentFee          ComponentType = "FEE"
	ComponentInterest     ComponentType = "INTEREST"
	ComponentFine         ComponentType = "FINE"
	ComponentPrescription ComponentType = "PRESCRIPTION"
	ComponentOther        ComponentType = "OTHER"
)

// VehicleInfo carries the registry's descriptive attributes.
type VehicleInfo struct {
	IdentificationCode int64  `json:"identificationCode"`
	CamvNumber         string `json:"camvNumber,omitempty"`
	VIN                string `json:"vin,omitempty"`
	EngineNumber       string `json:"engineNumber,omitempty"`
	Brand              string `json:"brand"`
	Model              string `json:"model"`
	Year               *int   `json:"year,omitempty"`
	Country            string `json:"country,omitempty"`
	PrimaryColor       string `json:"primaryColor,omitempty"`
	SecondaryColor     string `json:"secondaryColor,omitempty"`
	Displacement       string `json:"displacement,omitempty"`
	BodyClass          string `json:"bodyClass,omitempty"`
	ServiceType        string `json:"serviceType,omitempty"`
	Canton             string `json:"canton,omitempty"`
	LastRegistration   string `json:"lastRegistration,omitempty"`
	RegistrationExpiry string `json:"registrationExpiry,omitempty"`
	PurchaseDate       string `json:"purchaseDate,omitempty"`
	LastInspection     string `json:"lastInspection,omitempty"`
	LastYearPaid       int    `json:"lastYearPaid,omitempty"`
	TransferHold       bool   `json:"transferHold"`
	ExemptionStatus    string `json:"exemptionStatus,omitempty"`
	Remarks            string `json:"remarks,omitempty"`
}

// OwnerInfo is the holder block. Found is false when the lookup had no
// match; name and national ID stay empty in that case.
type OwnerInfo struct {
	Found      bool   `json:"found"`
	Name       string `json:"name,omitempty"`
	NationalID string `json:"nationalId,omitempty"`
}

// DebtComponent is one typed line item under a rubric.
type DebtComponent struct {
	Code         string        `json:"code"`
	Description  string        `json:"description"`
	Type         ComponentType `json:"type"`
	Amount       float64       `json:"amount"`
	FiscalPeriod string        `json:"fiscalPeriod,omitempty"`
}

// DebtRubric is one outstanding charge with its component breakdown.
type DebtRubric struct {
	Code        int64           `json:"code"`
	Description string          `json:"description"`
	Beneficiary string          `json:"beneficiary"`
	Amount      float64         `json:"amount"`
	YearFrom    int             `json:"yearFrom,omitempty"`
	YearTo      int             `json:"yearTo,omitempty"`
	Category    RubricCategory  `json:"category"`
	Priority    Priority        `json:"priority"`
	Components  []DebtComponent `json:"components,omitempty"`
}

// Payment is one settled collection.
type Payment struct {
	Code   string  `json:"code"`
	Date   string  `json:"date,omitempty"`
	Amount float64 `json:"amount"`
	Method string  `json:"method,omitempty"`
}

// InstallmentStatus is the standing of one payment-plan installment.
type InstallmentStatus string

const (
	InstallmentPaid    InstallmentStatus = "PAID"
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentOverdue InstallmentStatus = "OVERDUE"
)

// Installment is one scheduled payment of the environmental-tax exceptional
// payment plan.
type Installment struct {
	Number       string            `json:"number"`
	FiscalPeriod string            `json:"fiscalPeriod,omitempty"`
	Status       InstallmentStatus `json:"status"`
	Amount       float64           `json:"amount"`
}

// DebtSummary aggregates the fiscal picture and the derived analysis.
type DebtSummary struct {
	TotalTaxes          float64            `json:"totalTaxes"`
	TotalFees           float64            `json:"totalFees"`
	TotalInterest       float64            `json:"totalInterest"`
	TotalFines          float64            `json:"totalFines"`
	TotalPrescriptions  float64            `json:"totalPrescriptions"`
	TotalDebt           float64            `json:"totalDebt"`
	TotalPaid           float64            `json:"totalPaid"`
	PaymentsLastYear    float64            `json:"paymentsLastYear"`
	AvgAnnualPayment    float64            `json:"avgAnnualPayment"`
	OverdueInstallments float64            `json:"overdueInstallments"`
	PendingRubrics      int                `json:"pendingRubrics"`
	LegalStatus         LegalStatus        `json:"legalStatus"`
	Score               int                `json:"score"`
	RiskScore           int                `json:"riskScore"`
	RiskLevel           RiskLevel          `json:"riskLevel"`
	Recommendation      string             `json:"recommendation"`
	EstimatedValue      float64            `json:"estimatedValue,omitempty"`
	RegistrationStatus  RegistrationStatus `json:"registrationStatus"`
	DaysToExpiry        *int               `json:"daysToExpiry,omitempty"`
}

// Record is the complete normalized result for one plate query. It is the
// unit cached and returned to callers.
type Record struct {
	Vehicle      VehicleInfo   `json:"vehicle"`
	Owner        OwnerInfo     `json:"owner"`
	Debt         DebtSummary   `json:"debt"`
	Rubrics      []DebtRubric  `json:"rubrics,omitempty"`
	Payments     []Payment     `json:"payments,omitempty"`
	Installments []Installment `json:"installments,omitempty"`
	GeneratedAt  time.Time     `json:"generatedAt"`
}
