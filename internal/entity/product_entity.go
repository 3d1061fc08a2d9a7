package entity

import (
	"time"

	"github.com/google/uuid"
)

type Institution struct {
	Id            uuid.UUID
	Name          string
	Slug          string
	LicenseNumber string
	CountryCode   string
	IsActive      bool
}

// ProductDetails is the attribute bag stored in products.details.
// Absent attributes stay nil so "no fee" and "unknown fee" differ.
type ProductDetails struct {
	InterestRate         *float64 `json:"interestRate,omitempty"`
	AnnualPercentageRate *float64 `json:"annualPercentageRate,omitempty"`
	MinimumBalance       *float64 `json:"minimumBalance,omitempty"`
	MonthlyFee           *float64 `json:"monthlyFee,omitempty"`
	AnnualFee            *float64 `json:"annualFee,omitempty"`
	OriginationFee       *float64 `json:"originationFee,omitempty"`
	LoanAmountMin        *float64 `json:"loanAmountMin,omitempty"`
	LoanAmountMax        *float64 `json:"loanAmountMax,omitempty"`
	TermMin              *float64 `json:"termMin,omitempty"`
	TermMax              *float64 `json:"termMax,omitempty"`
	Features             []string `json:"features,omitempty"`
	Requirements         []string `json:"requirements,omitempty"`
}

type Product struct {
	Id              uuid.UUID
	Name            string
	Slug            string
	Description     string
	Details         ProductDetails
	IsFeatured      bool
	IsActive        bool
	InstitutionId   uuid.UUID
	InstitutionName string
	ProductTypeId   *uuid.UUID
	ProductTypeName string
	CategoryName    string
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}
