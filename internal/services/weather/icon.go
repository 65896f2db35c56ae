package weather

// IconURL derives the user-facing icon address from the provider's icon
// code. Pure string assembly, no network call.
func IconURL(iconCode string) string {
	if iconCode == "" {
		return ""
	}
	return "https://openweathermap.org/img/wn/" + iconCode + "@2x.png"
}
