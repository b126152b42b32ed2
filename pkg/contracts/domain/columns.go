package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Column names a column of the dataset. The names are the ones used by the
// published spreadsheet and are kept verbatim in every export.
type Column string

const (
	ColRegion           Column = "regiao"
	ColState            Column = "estado"
	ColCity             Column = "municipio"
	ColStateCode        Column = "coduf"
	ColCityCode         Column = "codmun"
	ColHealthRegionCode Column = "codRegiaoSaude"
	ColHealthRegionName Column = "nomeRegiaoSaude"
	ColDate             Column = "data"
	ColEpiWeek          Column = "semanaEpi"
	ColPopulation       Column = "populacaoTCU2019"
	ColCumulativeCases  Column = "casosAcumulado"
	ColNewCases         Column = "casosNovos"
	ColCumulativeDeaths Column = "obitosAcumulado"
	ColNewDeaths        Column = "obitosNovos"
	ColNewRecovered     Column = "Recuperadosnovos"
	ColUnderFollowUp    Column = "emAcompanhamentoNovos"
	ColMetropolitan     Column = "interior/metropolitana"
	ColWeekday          Column = "diaDaSemana"
)

// contaminationPrefix prefixes the derived contamination-day columns.
const contaminationPrefix = "diasDeContaminacao_"

// RecordColumns lists the record columns in dataset order.
var RecordColumns = []Column{
	ColRegion, ColState, ColCity, ColStateCode, ColCityCode,
	ColHealthRegionCode, ColHealthRegionName, ColDate, ColEpiWeek,
	ColPopulation, ColCumulativeCases, ColNewCases, ColCumulativeDeaths,
	ColNewDeaths, ColNewRecovered, ColUnderFollowUp, ColMetropolitan,
	ColWeekday,
}

// ContaminationColumn returns the name of the contamination-day column for a
// minimum case count, e.g. diasDeContaminacao_100.
func ContaminationColumn(minCases int) Column {
	return Column(contaminationPrefix + strconv.Itoa(minCases))
}

// ParseContaminationColumn is the inverse of ContaminationColumn.
func ParseContaminationColumn(c Column) (int, bool) {
	s, ok := strings.CutPrefix(string(c), contaminationPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Value returns the record value stored under c, formatted for text output.
// Unknown columns yield an empty string.
func (r Record) Value(c Column) string {
	switch c {
	case ColRegion:
		return r.Region
	case ColState:
		return r.State
	case ColCity:
		return r.City
	case ColStateCode:
		return r.StateCode
	case ColCityCode:
		return r.CityCode
	case ColHealthRegionCode:
		return r.HealthRegionCode
	case ColHealthRegionName:
		return r.HealthRegionName
	case ColDate:
		return r.DateKey()
	case ColEpiWeek:
		return strconv.Itoa(r.EpiWeek)
	case ColPopulation:
		return strconv.FormatInt(r.Population, 10)
	case ColCumulativeCases:
		return strconv.FormatInt(r.CumulativeCases, 10)
	case ColNewCases:
		return strconv.FormatInt(r.NewCases, 10)
	case ColCumulativeDeaths:
		return strconv.FormatInt(r.CumulativeDeaths, 10)
	case ColNewDeaths:
		return strconv.FormatInt(r.NewDeaths, 10)
	case ColNewRecovered:
		return strconv.FormatInt(r.NewRecovered, 10)
	case ColUnderFollowUp:
		return strconv.FormatInt(r.UnderFollowUp, 10)
	case ColMetropolitan:
		return r.Metropolitan
	case ColWeekday:
		return r.Weekday
	}
	return ""
}

// Granularity is the level of geographic aggregation of a slice.
type Granularity string

const (
	GranularityNation Granularity = "nation"
	GranularityState  Granularity = "state"
	GranularityCity   Granularity = "city"
)

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityNation, GranularityState, GranularityCity:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}
