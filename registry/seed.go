package registry

// SampleManufacturers is a small registry used to seed a local database
// for development and tests.
func SampleManufacturers() []Manufacturer {
	return []Manufacturer{
		{ID: 1, Name: "Fender", Country: "United States", FoundedYear: 1946, Website: "https://www.fender.com", Status: "active"},
		{ID: 2, Name: "Gibson", Country: "United States", FoundedYear: 1902, Website: "https://www.gibson.com", Status: "active"},
		{ID: 3, Name: "PRS Guitars", Country: "United States", FoundedYear: 1985, Website: "https://www.prsguitars.com", Status: "active"},
		{ID: 4, Name: "Ibanez", Country: "Japan", FoundedYear: 1957, Website: "https://www.ibanez.com", Status: "active"},
		{ID: 5, Name: "ESP", Country: "Japan", FoundedYear: 1975, Website: "https://www.espguitars.com", Status: "active"},
		{ID: 6, Name: "Jackson", Country: "United States", FoundedYear: 1980, Status: "active"},
		{ID: 7, Name: "Schecter", Country: "United States", FoundedYear: 1976, Status: "active"},
		{ID: 8, Name: "Martin", Country: "United States", FoundedYear: 1833, Website: "https://www.martinguitar.com", Status: "active"},
		{ID: 9, Name: "Gretsch", Country: "United States", FoundedYear: 1883, Status: "active"},
		{ID: 10, Name: "Rickenbacker", Country: "United States", FoundedYear: 1931},
		{ID: 11, Name: "Epiphone", Country: "United States", FoundedYear: 1873, Notes: "Owned by Gibson since 1957", Status: "active"},
		{ID: 12, Name: "Kay", Country: "United States", FoundedYear: 1890, Status: "inactive", Notes: "Original company closed 1968"},
	}
}
