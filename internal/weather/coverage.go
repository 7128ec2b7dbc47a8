package weather

// Coverage lists the PVGIS databases expected to serve a location. It is an
// approximation; PVGIS picks the actual database itself.
type Coverage struct {
	Latitude            float64
	Longitude           float64
	AvailableDatabases  []string
	RecommendedDatabase string
	Notes               []string
}

func CheckCoverage(lat, lon float64) Coverage {
	c := Coverage{
		Latitude:           lat,
		Longitude:          lon,
		AvailableDatabases: []string{},
		Notes:              []string{},
	}

	if lat >= -35 && lat <= 65 && lon >= -20 && lon <= 70 {
		c.AvailableDatabases = append(c.AvailableDatabases, "PVGIS-SARAH3")
		c.Notes = append(c.Notes, "High-resolution satellite data available")
	}
	if lat >= -20 && lon >= -170 && lon <= -20 {
		c.AvailableDatabases = append(c.AvailableDatabases, "PVGIS-NSRDB")
		c.Notes = append(c.Notes, "NREL NSRDB data available")
	}

	// ERA5 is global
	c.AvailableDatabases = append(c.AvailableDatabases, "PVGIS-ERA5")
	c.RecommendedDatabase = c.AvailableDatabases[0]

	if len(c.AvailableDatabases) == 1 {
		c.Notes = append(c.Notes, "Only ERA5 reanalysis data available (lower resolution)")
	}
	return c
}
