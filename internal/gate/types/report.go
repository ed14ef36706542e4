package types

type DailyStats struct {
	Date    string `json:"date"`
	Entries int    `json:"entries"`
	Exits   int    `json:"exits"`
	Inside  int    `json:"inside"`
}

type MonthlyRow struct {
	Date       string `json:"date"`
	Identities int    `json:"identities"`
	Entries    int    `json:"entries"`
}

type MonthlyReport struct {
	Month string       `json:"month"`
	Days  []MonthlyRow `json:"days"`
}
