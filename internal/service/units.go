package service

// Canonical test names produced by the panel parsers.
const (
	TestHb                    = "Hb"
	TestTotalRBC              = "Total RBC"
	TestHCT                   = "HCT"
	TestMCV                   = "MCV"
	TestMCH                   = "MCH"
	TestMCHC                  = "MCHC"
	TestPlateletCount         = "Platelet Count"
	TestWBCCount              = "WBC Count"
	TestNeutrophils           = "Neutrophils"
	TestLymphocytes           = "Lymphocytes"
	TestMonocytes             = "Monocytes"
	TestEosinophils           = "Eosinophils"
	TestBilirubinTotal        = "Bilirubin Total"
	TestBilirubinConjugated   = "Bilirubin Conjugated"
	TestBilirubinUnconjugated = "Bilirubin Unconjugated"
	TestSGPT                  = "SGPT"
	TestSGOT                  = "SGOT"
	TestAlkalinePhosphatase   = "Alkaline Phosphatase"
	TestGammaGT               = "Gamma GT"
	TestTotalProtein          = "Total Protein"
	TestAlbumin               = "Albumin"
	TestGlobulins             = "Globulins"
	TestAGRatio               = "A/G Ratio"
	TestHbA1c                 = "HbA1c"
	TestTSH                   = "TSH"
	TestT3                    = "T3"
	TestT4                    = "T4"
	TestFreeT3                = "Free T3"
	TestFreeT4                = "Free T4"
)

var testUnits = map[string]string{
	TestHb:                    "g/dL",
	TestTotalRBC:              "x10^12/L",
	TestHCT:                   "%",
	TestMCV:                   "fL",
	TestMCH:                   "pg",
	TestMCHC:                  "g/dL",
	TestPlateletCount:         "x10^9/L",
	TestWBCCount:              "x10^9/L",
	TestNeutrophils:           "%",
	TestLymphocytes:           "%",
	TestMonocytes:             "%",
	TestEosinophils:           "%",
	TestBilirubinTotal:        "mg/dL",
	TestBilirubinConjugated:   "mg/dL",
	TestBilirubinUnconjugated: "mg/dL",
	TestSGPT:                  "U/L",
	TestSGOT:                  "U/L",
	TestAlkalinePhosphatase:   "U/L",
	TestGammaGT:               "U/L",
	TestTotalProtein:          "g/dL",
	TestAlbumin:               "g/dL",
	TestGlobulins:             "g/dL",
	TestAGRatio:               "",
	TestHbA1c:                 "%",
	TestTSH:                   "μU/mL",
	TestT3:                    "ng/dL",
	TestT4:                    "μg/dL",
	TestFreeT3:                "pg/mL",
	TestFreeT4:                "ng/dL",
}

// UnitFor returns the display unit for a canonical test name, or "".
func UnitFor(testName string) string {
	return testUnits[testName]
}
