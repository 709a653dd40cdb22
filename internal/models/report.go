package models

import "time"

// Report types stored in ServiceReport.Type.
const (
	ReportTypeNoRep  = 1 // report-based
	ReportTypeNoSeri = 2 // serial-based
)

// ServiceReport is one FLK field-service report row.
type ServiceReport struct {
	ID         int64      `json:"id"`
	Type       int        `json:"type" validate:"oneof=1 2"`
	NoRep      string     `json:"no_rep"`
	NoSeri     string     `json:"no_seri" validate:"required_if=Type 2"`
	KdCus      string     `json:"kd_cus" validate:"required"`
	NmCus      string     `json:"nm_cus"`
	ItemCode   string     `json:"item_code"`
	ItemName   string     `json:"item_name"`
	Reporter   string     `json:"reporter"`
	Technician string     `json:"technician"`
	CallAt     *time.Time `json:"call_at"`
	ArrivalAt  *time.Time `json:"arrival_at"`
	StartAt    *time.Time `json:"start_at"`
	FinishAt   *time.Time `json:"finish_at"`
	Complaint  string     `json:"complaint"`
	Problem    string     `json:"problem"`
	Solution   string     `json:"solution"`
	Status     string     `json:"status"`
	RepCount   int        `json:"rep_count" validate:"gte=0"`
	UnitCount  int        `json:"unit_count" validate:"gte=0"`
	Attachment string     `json:"attachment"`
	Deleted    bool       `json:"deleted"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RepSeriStatus is the latest known state of a customer+serial pair.
type RepSeriStatus struct {
	Found    bool   `json:"found"`
	Status   string `json:"status"`
	RepCount int    `json:"rep_count"`
	Total    int    `json:"total"`
}
