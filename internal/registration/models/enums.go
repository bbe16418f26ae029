package models

import "slices"

// Gender as offered on the registration form.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Category is the reservation category of the registrant.
type Category string

const (
	CategoryOpen Category = "Open"
	CategoryOBC  Category = "OBC"
	CategorySEBC Category = "SEBC"
	CategorySBC  Category = "SBC"
	CategorySC   Category = "SC"
	CategoryST   Category = "ST"
	CategoryVJNT Category = "VJNT"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryOpen, CategoryOBC, CategorySEBC, CategorySBC, CategorySC, CategoryST, CategoryVJNT,
}

func (c Category) IsValid() bool {
	return slices.Contains(Categories, c)
}

// District is a Maharashtra district.
type District string

// Districts lists the accepted districts in display order.
var Districts = []District{
	"Ahmednagar", "Akola", "Amravati", "Aurangabad", "Beed", "Bhandara",
	"Buldhana", "Chandrapur", "Dhule", "Gadchiroli", "Gondia", "Hingoli",
	"Jalgaon", "Jalna", "Kolhapur", "Latur", "Mumbai City", "Mumbai Suburban",
	"Nagpur", "Nanded", "Nandurbar", "Nashik", "Osmanabad", "Palghar",
	"Parbhani", "Pune", "Raigad", "Ratnagiri", "Sangli", "Satara",
	"Sindhudurg", "Solapur", "Thane", "Wardha", "Washim", "Yavatmal",
}

func (d District) IsValid() bool {
	return slices.Contains(Districts, d)
}
