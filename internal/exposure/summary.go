package exposure

import (
	"cmp"
	"slices"

	"exposurewatch/internal/domain"
)

// DataPoints counts discrete pieces of exposed personal data by category.
type DataPoints struct {
	EmailAddresses     int `json:"emailAddresses"`
	PhoneNumbers       int `json:"phoneNumbers"`
	Addresses          int `json:"addresses"`
	FamilyMembers      int `json:"familyMembers"`
	SSNs               int `json:"socialSecurityNumbers"`
	IPAddresses        int `json:"ipAddresses"`
	Passwords          int `json:"passwords"`
	CreditCards        int `json:"creditCardNumbers"`
	PINs               int `json:"pins"`
	SecurityQuestions  int `json:"securityQuestions"`
	BankAccountNumbers int `json:"bankAccountNumbers"`
	Other              int `json:"other"`
}

func (d DataPoints) Total() int {
	return d.EmailAddresses + d.PhoneNumbers + d.Addresses + d.FamilyMembers +
		d.SSNs + d.IPAddresses + d.Passwords + d.CreditCards + d.PINs +
		d.SecurityQuestions + d.BankAccountNumbers + d.Other
}

func (d DataPoints) Add(o DataPoints) DataPoints {
	d.EmailAddresses += o.EmailAddresses
	d.PhoneNumbers += o.PhoneNumbers
	d.Addresses += o.Addresses
	d.FamilyMembers += o.FamilyMembers
	d.SSNs += o.SSNs
	d.IPAddresses += o.IPAddresses
	d.Passwords += o.Passwords
	d.CreditCards += o.CreditCards
	d.PINs += o.PINs
	d.SecurityQuestions += o.SecurityQuestions
	d.BankAccountNumbers += o.BankAccountNumbers
	d.Other += o.Other
	return d
}

// DataPointsOf counts the data points one exposure reveals. A broker listing
// contributes one point per email, phone, address and relative it shows; a
// breach contributes one point per affected data class.
func DataPointsOf(e Exposure) DataPoints {
	var d DataPoints
	switch e.kind {
	case KindScanRecord:
		r := e.record
		d.EmailAddresses = len(r.EmailAddresses)
		d.PhoneNumbers = len(r.PhoneNumbers)
		d.Addresses = len(r.Addresses)
		d.FamilyMembers = len(r.Relatives)
	case KindBreach:
		for _, c := range e.breach.DataClasses {
			d = d.Add(pointForClass(c))
		}
	}
	return d
}

func pointForClass(c domain.DataClass) DataPoints {
	switch c {
	case domain.DataEmailAddresses:
		return DataPoints{EmailAddresses: 1}
	case domain.DataPhoneNumbers:
		return DataPoints{PhoneNumbers: 1}
	case domain.DataPhysicalAddresses:
		return DataPoints{Addresses: 1}
	case domain.DataFamilyMembers:
		return DataPoints{FamilyMembers: 1}
	case domain.DataSSNs:
		return DataPoints{SSNs: 1}
	case domain.DataIPAddresses:
		return DataPoints{IPAddresses: 1}
	case domain.DataPasswords:
		return DataPoints{Passwords: 1}
	case domain.DataCreditCards:
		return DataPoints{CreditCards: 1}
	case domain.DataPINs:
		return DataPoints{PINs: 1}
	case domain.DataSecurityQuestions:
		return DataPoints{SecurityQuestions: 1}
	case domain.DataBankAccountNumbers:
		return DataPoints{BankAccountNumbers: 1}
	}
	return DataPoints{Other: 1}
}

// Tally is a record count with the data points those records expose.
type Tally struct {
	Records    int        `json:"records"`
	DataPoints DataPoints `json:"dataPoints"`
}

func (t Tally) add(dp DataPoints) Tally {
	t.Records++
	t.DataPoints = t.DataPoints.Add(dp)
	return t
}

func (t Tally) plus(o Tally) Tally {
	return Tally{Records: t.Records + o.Records, DataPoints: t.DataPoints.Add(o.DataPoints)}
}

// Summary holds the dashboard counters. Every exposure lands in exactly one
// of the six status buckets, so Total equals the sum of those buckets.
type Summary struct {
	BreachUnresolved Tally `json:"breachUnresolved"`
	BreachAutoFixed  Tally `json:"breachAutoFixed"`
	BreachManual     Tally `json:"breachManuallyResolved"`

	BrokerActionNeeded     Tally `json:"brokerActionNeeded"`
	BrokerInProgress       Tally `json:"brokerInProgress"`
	BrokerAutoFixed        Tally `json:"brokerAutoFixed"`
	BrokerManuallyResolved Tally `json:"brokerManuallyResolved"`

	Total Tally `json:"total"`
}

// Summarize aggregates classified exposures.
func Summarize(items []Classified) Summary {
	var s Summary
	for _, c := range items {
		dp := DataPointsOf(c.Exposure)
		s.Total = s.Total.add(dp)
		bucket := c.Status.Bucket()
		switch c.Kind() {
		case KindBreach:
			switch bucket {
			case BucketAutoFixed:
				s.BreachAutoFixed = s.BreachAutoFixed.add(dp)
			case BucketManuallyResolved, BucketInProgress:
				s.BreachManual = s.BreachManual.add(dp)
			default:
				s.BreachUnresolved = s.BreachUnresolved.add(dp)
			}
		case KindScanRecord:
			switch bucket {
			case BucketInProgress:
				s.BrokerInProgress = s.BrokerInProgress.add(dp)
			case BucketAutoFixed:
				s.BrokerAutoFixed = s.BrokerAutoFixed.add(dp)
			case BucketManuallyResolved:
				s.BrokerManuallyResolved = s.BrokerManuallyResolved.add(dp)
			default:
				s.BrokerActionNeeded = s.BrokerActionNeeded.add(dp)
			}
		}
	}
	return s
}

func (s Summary) BreachTotal() Tally {
	return s.BreachUnresolved.plus(s.BreachAutoFixed).plus(s.BreachManual)
}

func (s Summary) BrokerTotal() Tally {
	return s.BrokerActionNeeded.plus(s.BrokerInProgress).plus(s.BrokerAutoFixed).plus(s.BrokerManuallyResolved)
}

// Unresolved is everything still on the action-needed tab.
func (s Summary) Unresolved() Tally {
	return s.BreachUnresolved.plus(s.BrokerActionNeeded)
}

// Fixed is everything on the fixed tab, in-progress listings included.
func (s Summary) Fixed() Tally {
	return s.BreachAutoFixed.plus(s.BreachManual).
		plus(s.BrokerInProgress).plus(s.BrokerAutoFixed).plus(s.BrokerManuallyResolved)
}

// Category is one named data point count.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Categories lists non-zero data point counts, largest first, ties by name.
func (d DataPoints) Categories() []Category {
	all := []Category{
		{"email-addresses", d.EmailAddresses},
		{"phone-numbers", d.PhoneNumbers},
		{"addresses", d.Addresses},
		{"family-members", d.FamilyMembers},
		{"social-security-numbers", d.SSNs},
		{"ip-addresses", d.IPAddresses},
		{"passwords", d.Passwords},
		{"credit-card-numbers", d.CreditCards},
		{"pins", d.PINs},
		{"security-questions", d.SecurityQuestions},
		{"bank-account-numbers", d.BankAccountNumbers},
		{"other", d.Other},
	}
	out := slices.DeleteFunc(all, func(c Category) bool { return c.Count == 0 })
	slices.SortStableFunc(out, func(a, b Category) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// TopCategories keeps the n largest categories and folds the rest into a
// single "other" entry, so the counts still add up to d.Total().
func (d DataPoints) TopCategories(n int) []Category {
	cats := d.Categories()
	if n <= 0 || len(cats) <= n {
		return cats
	}
	rest := 0
	for _, c := range cats[n:] {
		rest += c.Count
	}
	top := slices.Clone(cats[:n])
	if i := slices.IndexFunc(top, func(c Category) bool { return c.Name == "other" }); i >= 0 {
		top[i].Count += rest
		return top
	}
	return append(top, Category{Name: "other", Count: rest})
}
