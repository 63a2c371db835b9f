package locality

import "sort"

// table maps full jurisdiction names to their postal codes.
var table = map[string]string{
	"Alabama":                        "AL",
	"Alaska":                         "AK",
	"Arizona":                        "AZ",
	"Arkansas":                       "AR",
	"California":                     "CA",
	"Colorado":                       "CO",
	"Connecticut":                    "CT",
	"Delaware":                       "DE",
	"Florida":                        "FL",
	"Georgia":                        "GA",
	"Hawaii":                         "HI",
	"Idaho":                          "ID",
	"Illinois":                       "IL",
	"Indiana":                        "IN",
	"Iowa":                           "IA",
	"Kansas":                         "KS",
	"Kentucky":                       "KY",
	"Louisiana":                      "LA",
	"Maine":                          "ME",
	"Maryland":                       "MD",
	"Massachusetts":                  "MA",
	"Michigan":                       "MI",
	"Minnesota":                      "MN",
	"Mississippi":                    "MS",
	"Missouri":                       "MO",
	"Montana":                        "MT",
	"Nebraska":                       "NE",
	"Nevada":                         "NV",
	"New Hampshire":                  "NH",
	"New Jersey":                     "NJ",
	"New Mexico":                     "NM",
	"New York":                       "NY",
	"North Carolina":                 "NC",
	"North Dakota":                   "ND",
	"Ohio":                           "OH",
	"Oklahoma":                       "OK",
	"Oregon":                         "OR",
	"Pennsylvania":                   "PA",
	"Rhode Island":                   "RI",
	"South Carolina":                 "SC",
	"South Dakota":                   "SD",
	"Tennessee":                      "TN",
	"Texas":                          "TX",
	"Utah":                           "UT",
	"Vermont":                        "VT",
	"Virginia":                       "VA",
	"Washington":                     "WA",
	"West Virginia":                  "WV",
	"Wisconsin":                      "WI",
	"Wyoming":                        "WY",
	"American Samoa":                 "AS",
	"District of Columbia":           "DC",
	"Federated States of Micronesia": "FM",
	"Guam":                           "GU",
	"Marshall Islands":               "MH",
	"Northern Mariana Islands":       "MP",
	"Palau":                          "PW",
	"Puerto Rico":                    "PR",
	"Virgin Islands":                 "VI",
}

// Code returns the postal code for a full jurisdiction name.
// Matching is exact: no case folding and no trimming.
func Code(name string) (string, bool) {
	code, ok := table[name]
	return code, ok
}

// Len reports the number of jurisdictions in the table.
func Len() int {
	return len(table)
}

// Names returns every jurisdiction name in sorted order.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
