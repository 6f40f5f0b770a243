package rules

const (
	MinAge = 18
	MaxAge = 120

	MaxFullNameLength = 80
	MaxBioLength      = 1000
	MaxTagLength      = 40
	MaxTags           = 20

	MaxMessageLength = 2000
)

func AgeAllowed(age int) bool {
	return age >= MinAge && age <= MaxAge
}
