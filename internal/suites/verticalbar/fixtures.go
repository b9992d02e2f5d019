package verticalbar

import "github.com/ternarybob/vizcheck/internal/models"

// Expected values observed from the 3h date histogram over the default range.
// The legend orderings are the application's output contract and are compared
// as-is.
var (
	// ExpectedCounts is the Count series for the 24 buckets
	ExpectedCounts = []float64{
		37, 202, 740, 1437, 1371, 751, 188, 31, 42, 202, 683, 1361,
		1415, 707, 177, 27, 32, 175, 707, 1408, 1355, 726, 201, 29,
	}

	// ExpectedRows is the first page of the inspector table
	ExpectedRows = []models.TableRow{
		{Label: "2015-09-20 00:00", Value: "37"},
		{Label: "2015-09-20 03:00", Value: "202"},
		{Label: "2015-09-20 06:00", Value: "740"},
		{Label: "2015-09-20 09:00", Value: "1,437"},
		{Label: "2015-09-20 12:00", Value: "1,371"},
		{Label: "2015-09-20 15:00", Value: "751"},
		{Label: "2015-09-20 18:00", Value: "188"},
		{Label: "2015-09-20 21:00", Value: "31"},
		{Label: "2015-09-21 00:00", Value: "42"},
		{Label: "2015-09-21 03:00", Value: "202"},
	}

	ResponseLegend = []string{"200", "404", "503"}

	MultiSplitLegend = []string{
		"200 - win 8", "200 - win xp", "200 - ios", "200 - osx", "200 - win 7",
		"404 - ios", "503 - ios", "503 - osx", "503 - win 7", "503 - win 8",
		"503 - win xp", "404 - osx", "404 - win 7", "404 - win 8", "404 - win xp",
	}

	OSLegend = []string{"win 8", "win xp", "ios", "osx", "win 7"}

	DerivativeLegend = []string{"Derivative of Count"}
)
