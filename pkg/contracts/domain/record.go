package domain

import (
	"time"
)

// NationalRegion is the value of the region column on rows that aggregate the
// whole country.
const NationalRegion = "Brasil"

// Record is one row of the published dataset: one region on one date.
// State and CityCode are empty on rows that aggregate a larger area.
type Record struct {
	Region           string    `json:"regiao" validate:"required"`
	State            string    `json:"estado,omitempty"`
	City             string    `json:"municipio,omitempty"`
	StateCode        string    `json:"coduf,omitempty"`
	CityCode         string    `json:"codmun,omitempty"`
	HealthRegionCode string    `json:"codRegiaoSaude,omitempty"`
	HealthRegionName string    `json:"nomeRegiaoSaude,omitempty"`
	Date             time.Time `json:"data" validate:"required"`
	EpiWeek          int       `json:"semanaEpi"`
	Population       int64     `json:"populacaoTCU2019" validate:"min=0"`
	CumulativeCases  int64     `json:"casosAcumulado" validate:"min=0"`
	NewCases         int64     `json:"casosNovos"`
	CumulativeDeaths int64     `json:"obitosAcumulado" validate:"min=0"`
	NewDeaths        int64     `json:"obitosNovos"`
	NewRecovered     int64     `json:"Recuperadosnovos"`
	UnderFollowUp    int64     `json:"emAcompanhamentoNovos"`
	Metropolitan     string    `json:"interior/metropolitana,omitempty"`
	Weekday          string    `json:"diaDaSemana"`
}

// IsNational reports whether the row aggregates the whole country.
func (r Record) IsNational() bool {
	return r.Region == NationalRegion
}

// IsStateTotal reports whether the row is a state total, i.e. it names a
// state but no city.
func (r Record) IsStateTotal() bool {
	return r.State != "" && r.CityCode == ""
}

// IsCity reports whether the row belongs to a single city.
func (r Record) IsCity() bool {
	return r.CityCode != ""
}

// DateKey formats the record date the way the dataset does.
func (r Record) DateKey() string {
	return r.Date.Format(DateLayout)
}

// DateLayout is the date format used by the published dataset.
const DateLayout = "2006-01-02"

// weekdays are the Portuguese weekday names, Monday first.
var weekdays = [...]string{"Segunda", "Terça", "Quarta", "Quinta", "Sexta", "Sábado", "Domingo"}

// WeekdayName returns the Portuguese weekday name for t.
func WeekdayName(t time.Time) string {
	// time.Weekday starts on Sunday
	return weekdays[(int(t.Weekday())+6)%7]
}
