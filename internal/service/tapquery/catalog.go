// Package tapquery file: internal/service/tapquery/catalog.go
package tapquery

import (
	"fmt"
	"sort"

	"ExoGate/internal/core/domain"
)

const (
	UpstreamNASA = "nasa"
	UpstreamEU   = "eu"
)

var koiColumns = []string{"kepid", "kepoi_name", "koi_disposition", "koi_period", "koi_prad", "koi_smass", "koi_srad", "koi_steff"}
var koiPColumns = []string{"kepid", "kepoi_name", "koi_pdisposition", "koi_period", "koi_prad", "koi_smass", "koi_srad", "koi_steff"}

var longTimeout = domain.UpstreamPolicy{Upstream: UpstreamNASA, TimeoutMs: 60000}

// koiDelivery KOI 各期交付表结构一致，空结果时返回静态列清单
func koiDelivery(name, label, table string, pdisposition bool) domain.DatasetSpec {
	cols, dispCol := koiColumns, "koi_disposition"
	if pdisposition {
		cols, dispCol = koiPColumns, "koi_pdisposition"
	}
	return domain.DatasetSpec{
		Name:           name,
		ServiceLabel:   label,
		SourceTable:    table,
		Columns:        cols,
		FilterTemplate: dispCol + " IN ('CANDIDATE', 'CONFIRMED')",
		SortColumn:     "koi_period",
		SortDirection:  domain.SortAsc,
		Fallback: &domain.FallbackSpec{
			StaticValues:    cols,
			MessageTemplate: "No data found for " + label + ".",
			AlternativesKey: "available_columns",
		},
		Policy: domain.UpstreamPolicy{Upstream: UpstreamNASA},
	}
}

// builtinDatasets 是所有对外提供的数据集
func builtinDatasets() []domain.DatasetSpec {
	return []domain.DatasetSpec{
		{
			Name:           "exoplanets",
			ServiceLabel:   "NASA's Exoplanet Archive TAP",
			SourceTable:    "pscomppars",
			Columns:        []string{"pl_name", "discoverymethod", "pl_orbper", "pl_radj"},
			FilterTemplate: "pl_orbper IS NOT NULL",
			SortColumn:     "pl_orbper",
			SortDirection:  domain.SortAsc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "tess-candidates",
			ServiceLabel:   "TESS Candidates",
			SourceTable:    "toi",
			Columns:        []string{"tid", "toi", "pl_orbper", "pl_rade", "st_teff"},
			FilterTemplate: "st_teff IS NOT NULL",
			SortColumn:     "st_teff",
			SortDirection:  domain.SortDesc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "planetary-systems",
			ServiceLabel:   "Planetary Systems",
			SourceTable:    "pscomppars",
			Columns:        []string{"pl_name", "hostname", "discoverymethod", "pl_orbper", "pl_radj", "pl_eqt"},
			FilterTemplate: "pl_orbper IS NOT NULL",
			SortColumn:     "pl_orbper",
			SortDirection:  domain.SortAsc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "microlensing",
			ServiceLabel:   "Microlensing",
			SourceTable:    "ml",
			Columns:        []string{"pl_name", "rastr", "decstr", "pl_massj", "pl_masse"},
			FilterTemplate: "pl_masse IS NOT NULL",
			SortColumn:     "pl_masse",
			SortDirection:  domain.SortDesc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "stellar-hosts",
			ServiceLabel:   "Stellar Hosts",
			SourceTable:    "stellarhosts",
			Columns:        []string{"hostname", "sy_name", "hd_name", "hip_name", "tic_id", "gaia_id", "sy_snum", "sy_pnum", "sy_mnum", "cb_flag"},
			FilterTemplate: "cb_flag IS NOT NULL",
			SortColumn:     "cb_flag",
			SortDirection:  domain.SortDesc,
			Fallback: &domain.FallbackSpec{
				Query:           "SELECT DISTINCT hostname FROM stellarhosts",
				MessageTemplate: "No data found for stellar hosts.",
				AlternativesKey: "available_hostnames",
			},
			Policy: domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "pscomppars",
			ServiceLabel:   "Planetary Systems Composite Parameters",
			SourceTable:    "pscomppars",
			Columns:        []string{"pl_name", "hostname", "discoverymethod", "pl_orbper", "pl_radj", "pl_eqt", "st_teff", "st_mass", "st_rad"},
			FilterTemplate: "pl_orbper IS NOT NULL",
			SortColumn:     "pl_orbper",
			SortDirection:  domain.SortAsc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "kepler-names",
			ServiceLabel:   "Kepler Names",
			SourceTable:    "keplernames",
			Columns:        []string{"kepid", "koi_name", "kepler_name", "pl_name"},
			FilterTemplate: "kepler_name IS NOT NULL",
			SortColumn:     "pl_name",
			SortDirection:  domain.SortDesc,
			Fallback: &domain.FallbackSpec{
				Query:           "SELECT DISTINCT kepler_name FROM keplernames",
				MessageTemplate: "No data found for kepler_name.",
				AlternativesKey: "available_kepler_names",
			},
			Policy: domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "k2-names",
			ServiceLabel:   "K2 Names",
			SourceTable:    "k2names",
			Columns:        []string{"epic_id", "k2_name", "pl_name"},
			FilterTemplate: "k2_name = 'CONFIRMED'",
			SortColumn:     "pl_name",
			SortDirection:  domain.SortDesc,
			Fallback: &domain.FallbackSpec{
				Query:           "SELECT DISTINCT k2_name FROM k2names",
				MessageTemplate: "No data found for k2_name = 'CONFIRMED'.",
				AlternativesKey: "available_k2_names",
			},
			Policy: domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:         "k2-planets-candidates",
			ServiceLabel: "K2 Planets and Candidates",
			SourceTable:  "k2pandc",
			Columns: []string{"pl_name", "hostname", "pl_letter", "k2_name", "cb_flag", "discoverymethod",
				"disc_year", "disc_telescope", "pl_orbper", "pl_orbsmax", "pl_masse",
				"pl_msinie", "st_mass", "st_spectype"},
			RowCap: 5,
			Policy: domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:         "ukirt",
			ServiceLabel: "UKIRT",
			SourceTable:  "ukirttimeseries",
			Columns: []string{"sourceid", "obs_year", "bulge", "field", "ccdid", "k2c9_flag", "ukirt_id",
				"moa_id", "statnpts", "minvalue", "maxvalue", "median"},
			FilterTemplate: "statnpts IS NOT NULL",
			SortColumn:     "median",
			SortDirection:  domain.SortAsc,
			RowCap:         100,
			Policy: domain.UpstreamPolicy{
				Upstream:          UpstreamNASA,
				TimeoutMs:         60000,
				MaxRetries:        3,
				RetryableStatuses: []int{500, 502, 503, 504},
			},
		},
		{
			Name:         "kelt",
			ServiceLabel: "KELT",
			SourceTable:  "kelttimeseries",
			Columns: []string{"kelt_sourceid", "kelt_field", "kelt_orientation", "proc_type", "ra", "dec",
				"bjdstart", "bjdstop", "obsstart", "obsstop", "kelt_mag", "npts", "minvalue",
				"maxvalue", "mean", "stddevwrtmean", "median", "stddevwrtmedian", "n5sigma",
				"f5sigma", "medabsdev", "chisquared", "range595"},
			FilterTemplate: "kelt_sourceid = '{sourceID}'",
			SortColumn:     "bjdstart",
			SortDirection:  domain.SortAsc,
			RowCap:         100,
			Parameters:     []string{"sourceID"},
			Fallback: &domain.FallbackSpec{
				Query:           "SELECT TOP 10 kelt_sourceid FROM kelttimeseries",
				MessageTemplate: "No data found for kelt_sourceid '{sourceID}'.",
				AlternativesKey: "available_sourceIDs",
			},
			Policy: longTimeout,
		},
		{
			Name:           "superwasp",
			ServiceLabel:   "SuperWASP",
			SourceTable:    "superwasptimeseries",
			Columns:        []string{"sourceid", "ra", "dec", "hjdstart", "hjdstop"},
			FilterTemplate: "hjdstart IS NOT NULL",
			SortColumn:     "hjdstart",
			SortDirection:  domain.SortAsc,
			RowCap:         100,
			Policy:         longTimeout,
		},
		{
			Name:           "hwo-stars",
			ServiceLabel:   "HWO Stars",
			SourceTable:    "di_stars_exep",
			Columns:        []string{"star_name", "ra", "dec", "sy_dist", "st_mass", "st_rad", "st_teff"},
			FilterTemplate: "sy_dist IS NOT NULL",
			SortColumn:     "sy_dist",
			SortDirection:  domain.SortAsc,
			Fallback: &domain.FallbackSpec{
				Query:           "SELECT DISTINCT star_name FROM di_stars_exep",
				MessageTemplate: "No data found for HWO stars.",
				AlternativesKey: "available_star_names",
			},
			Policy: domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "transiting-planets",
			ServiceLabel:   "Transiting Planets",
			SourceTable:    "TD",
			Columns:        []string{"pl_name", "hostname", "pl_orbper", "pl_radj", "pl_trandep", "pl_trandur", "pl_tranmid"},
			FilterTemplate: "pl_orbper IS NOT NULL",
			SortColumn:     "pl_orbper",
			SortDirection:  domain.SortAsc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		{
			Name:           "koi-cumulative",
			ServiceLabel:   "KOI Cumulative Delivery Table",
			SourceTable:    "cumulative",
			Columns:        koiColumns,
			FilterTemplate: "koi_disposition IN ('CANDIDATE', 'CONFIRMED')",
			SortColumn:     "koi_period",
			SortDirection:  domain.SortAsc,
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamNASA},
		},
		koiDelivery("koi-q1q6", "KOI Q1-Q6 Delivery Table", "q1_q6_koi", false),
		koiDelivery("koi-q1q8", "KOI Q1-Q8 Delivery Table", "q1_q8_koi", false),
		koiDelivery("koi-q1q12", "KOI Q1-Q12 Delivery Table", "q1_q12_koi", true),
		koiDelivery("koi-q1q16", "KOI Q1-Q16 Delivery Table", "q1_q16_koi", false),
		koiDelivery("koi-q1q17-dr24", "KOI Q1-Q17 DR24 Delivery Table", "q1_q17_dr24_koi", true),
		koiDelivery("koi-q1q17-dr25", "KOI Q1-Q17 DR25 Delivery Table", "q1_q17_dr25_koi", false),
		koiDelivery("koi-q1q17-dr25-supplemental", "KOI Q1-Q17 DR25 Supplemental Delivery Table", "q1_q17_dr25_sup_koi", false),
		{
			Name:         "exoplanet-eu",
			ServiceLabel: "Exoplanet.eu",
			SourceTable:  "exoplanet.epn_core",
			Columns: []string{"target_name", "mass", "radius", "semi_major_axis", "period",
				"star_name", "star_distance", "star_mass", "star_radius", "star_teff"},
			FilterTemplate: "semi_major_axis < 5",
			Policy:         domain.UpstreamPolicy{Upstream: UpstreamEU, RowFormat: domain.RowFormatColumnar},
		},
	}
}

// Catalog 数据集表。构建完成后只读，可被并发请求共享。
type Catalog struct {
	specs map[string]*domain.DatasetSpec
	names []string
}

// NewCatalog 校验并收录数据集：名称唯一、列非空、过滤模板中的占位符必须在 Parameters 中声明。
func NewCatalog(specs []domain.DatasetSpec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]*domain.DatasetSpec, len(specs))}
	for i := range specs {
		s := specs[i]
		if s.Name == "" || s.SourceTable == "" || len(s.Columns) == 0 {
			return nil, fmt.Errorf("数据集 #%d 定义不完整 (name/table/columns)", i)
		}
		if _, dup := c.specs[s.Name]; dup {
			return nil, fmt.Errorf("数据集 '%s' 重复定义", s.Name)
		}
		declared := make(map[string]bool, len(s.Parameters))
		for _, p := range s.Parameters {
			declared[p] = true
		}
		for _, p := range Placeholders(s.FilterTemplate) {
			if !declared[p] {
				return nil, fmt.Errorf("数据集 '%s' 的过滤条件引用了未声明的参数 '%s'", s.Name, p)
			}
		}
		c.specs[s.Name] = &s
		c.names = append(c.names, s.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// DefaultCatalog 返回内置的数据集表
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinDatasets())
	if err != nil {
		panic(fmt.Sprintf("内置数据集定义非法: %v", err))
	}
	return c
}

// Get 返回的指针指向共享的只读定义，调用方不得修改
func (c *Catalog) Get(name string) (*domain.DatasetSpec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Names 按字母序返回所有数据集名称
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// List 按名称顺序返回所有数据集
func (c *Catalog) List() []*domain.DatasetSpec {
	out := make([]*domain.DatasetSpec, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.specs[n])
	}
	return out
}

// Len 数据集数量
func (c *Catalog) Len() int { return len(c.names) }
