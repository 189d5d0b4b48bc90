package calendar

// Static NYSE holiday and early-close tables covering 2024 through 2026.
// Injected as the default sets; deployments with a longer horizon override
// them via WithHolidays / WithHalfDays.

func defaultHolidays() map[string]bool {
	dates := []string{
		// 2024
		"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29",
		"2024-05-27", "2024-06-19", "2024-07-04", "2024-09-02",
		"2024-11-28", "2024-12-25",
		// 2025
		"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18",
		"2025-05-26", "2025-06-19", "2025-07-04", "2025-09-01",
		"2025-11-27", "2025-12-25",
		// 2026
		"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03",
		"2026-05-25", "2026-06-19", "2026-07-03", "2026-09-07",
		"2026-11-26", "2026-12-25",
	}
	m := make(map[string]bool, len(dates))
	for _, d := range dates {
		m[d] = true
	}
	return m
}

func defaultHalfDays() map[string]bool {
	dates := []string{
		"2024-07-03", "2024-11-29", "2024-12-24",
		"2025-07-03", "2025-11-28", "2025-12-24",
		"2026-11-27", "2026-12-24",
	}
	m := make(map[string]bool, len(dates))
	for _, d := range dates {
		m[d] = true
	}
	return m
}
