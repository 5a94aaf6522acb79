// Package parcel is a client for the third-party parcel-data provider. Only
// the normalized subset of a provider record that portfolios keep is
// decoded.
package parcel

import (
	"errors"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("parcel not found")

type Parcel struct {
	APN           string  `json:"apn"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	County        string  `json:"county"`
	State         string  `json:"state"`
	Zip           string  `json:"zip"`
	Owner         string  `json:"owner"`
	LandUse       string  `json:"land_use"`
	LotSqft       float64 `json:"lot_sqft"`
	BuildingSqft  float64 `json:"building_sqft"`
	YearBuilt     int     `json:"year_built"`
	AssessedValue float64 `json:"assessed_value"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// APNQuery narrows an APN lookup; parcel numbers are only unique within a
// county.
type APNQuery struct {
	APN    string
	County string
	State  string
}

func (q APNQuery) Valid() bool {
	return strings.TrimSpace(q.APN) != ""
}

// path is the provider's region filter, e.g. /us/ca/los-angeles
func (q APNQuery) path() string {
	if q.State == "" {
		return ""
	}
	p := "/us/" + strings.ToLower(q.State)
	if q.County != "" {
		p += "/" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(q.County)), " ", "-")
	}
	return p
}

type searchResponse struct {
	Parcels struct {
		Features []feature `json:"features"`
	} `json:"parcels"`
}

type feature struct {
	Properties struct {
		Fields fields `json:"fields"`
	} `json:"properties"`
}

type fields struct {
	ParcelNumber string  `json:"parcelnumb"`
	Address      string  `json:"address"`
	City         string  `json:"scity"`
	County       string  `json:"county"`
	State        string  `json:"state2"`
	Zip          string  `json:"szip"`
	Owner        string  `json:"owner"`
	UseDesc      string  `json:"usedesc"`
	LotSqft      float64 `json:"ll_gissqft"`
	BuildingSqft float64 `json:"ll_bldg_footprint_sqft"`
	YearBuilt    int     `json:"yearbuilt"`
	ParcelValue  float64 `json:"parval"`
	Lat          string  `json:"lat"`
	Lon          string  `json:"lon"`
}

func (f fields) normalize() Parcel {
	lat, _ := strconv.ParseFloat(f.Lat, 64)
	lon, _ := strconv.ParseFloat(f.Lon, 64)

	return Parcel{
		APN:           strings.TrimSpace(f.ParcelNumber),
		Address:       f.Address,
		City:          f.City,
		County:        f.County,
		State:         strings.ToUpper(f.State),
		Zip:           f.Zip,
		Owner:         f.Owner,
		LandUse:       f.UseDesc,
		LotSqft:       f.LotSqft,
		BuildingSqft:  f.BuildingSqft,
		YearBuilt:     f.YearBuilt,
		AssessedValue: f.ParcelValue,
		Latitude:      lat,
		Longitude:     lon,
	}
}
