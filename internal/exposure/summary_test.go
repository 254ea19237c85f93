package exposure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exposurewatch/internal/domain"
)

func bucketSum(s Summary) Tally {
	return s.BreachUnresolved.plus(s.BreachAutoFixed).plus(s.BreachManual).
		plus(s.BrokerActionNeeded).plus(s.BrokerInProgress).
		plus(s.BrokerAutoFixed).plus(s.BrokerManuallyResolved)
}

func TestSummarize_PremiumScanDoneWithFreshRecords(t *testing.T) {
	t.Parallel()

	records := []domain.ScanRecord{
		recordAt("a", base, domain.RemovalNew),
		recordAt("b", base.Add(time.Minute), domain.RemovalNew),
		recordAt("c", base.Add(2*time.Minute), domain.RemovalNew),
	}
	items := ClassifyAll(Merge(nil, records), Options{Premium: true})
	for _, c := range items {
		assert.Equal(t, StatusOptOutInProgress, c.Status)
	}

	s := Summarize(items)
	assert.Equal(t, 0, s.BrokerActionNeeded.Records)
	assert.Equal(t, 3, s.BrokerInProgress.Records)
	assert.Equal(t, 3, s.BrokerTotal().Records)
	assert.Equal(t, 0, s.Unresolved().Records)
}

func TestSummarize_CountsDataPoints(t *testing.T) {
	t.Parallel()

	listing := recordAt("a", base, domain.RemovalNew)
	listing.EmailAddresses = []string{"a@example.com", "b@example.com"}
	listing.PhoneNumbers = []string{"555-0100"}
	listing.Addresses = []string{"1 Main St, Springfield, IL"}
	listing.Relatives = []string{"Jane Doe", "John Doe"}

	removed := recordAt("b", base, domain.RemovalRemoved)
	removed.PhoneNumbers = []string{"555-0101"}

	leak := breachAt(1, base, false,
		domain.DataEmailAddresses, domain.DataPasswords, domain.DataClass("usernames"))
	fixedLeak := breachAt(2, base, true, domain.DataSSNs)
	fixedLeak.ResolutionReason = domain.ResolvedManually

	items := ClassifyAll(Merge(
		[]domain.BreachRecord{leak, fixedLeak},
		[]domain.ScanRecord{listing, removed},
	), Options{})
	s := Summarize(items)

	assert.Equal(t, Tally{Records: 1, DataPoints: DataPoints{EmailAddresses: 2, PhoneNumbers: 1, Addresses: 1, FamilyMembers: 2}}, s.BrokerActionNeeded)
	assert.Equal(t, Tally{Records: 1, DataPoints: DataPoints{PhoneNumbers: 1}}, s.BrokerAutoFixed)
	assert.Equal(t, Tally{Records: 1, DataPoints: DataPoints{EmailAddresses: 1, Passwords: 1, Other: 1}}, s.BreachUnresolved)
	assert.Equal(t, Tally{Records: 1, DataPoints: DataPoints{SSNs: 1}}, s.BreachManual)

	assert.Equal(t, 4, s.Total.Records)
	assert.Equal(t, 11, s.Total.DataPoints.Total())
	assert.Equal(t, 2, s.BreachTotal().Records)
	assert.Equal(t, 2, s.Unresolved().Records)
	assert.Equal(t, 2, s.Fixed().Records)
}

func TestSummarize_ZeroDataPointRecordStillCounts(t *testing.T) {
	t.Parallel()

	s := Summarize(ClassifyAll(Merge(
		[]domain.BreachRecord{breachAt(1, base, false)},
		[]domain.ScanRecord{recordAt("a", base, domain.RemovalNew)},
	), Options{}))

	assert.Equal(t, 1, s.BreachUnresolved.Records)
	assert.Equal(t, 1, s.BrokerActionNeeded.Records)
	assert.Equal(t, 0, s.Total.DataPoints.Total())
}

func TestSummarize_CountConservation(t *testing.T) {
	t.Parallel()

	statuses := []domain.RemovalStatus{
		domain.RemovalNew, domain.RemovalOptOutInProgress,
		domain.RemovalWaitingForVerification, domain.RemovalRemoved,
	}
	classes := []domain.DataClass{
		domain.DataEmailAddresses, domain.DataPhoneNumbers, domain.DataSSNs,
		domain.DataCreditCards, domain.DataClass("avatars"),
	}

	var records []domain.ScanRecord
	var breaches []domain.BreachRecord
	for i := range 40 {
		r := recordAt(string(rune('a'+i%26))+string(rune('0'+i/26)), base.Add(time.Duration(i)*time.Minute), statuses[i%len(statuses)])
		r.ManuallyResolved = i%7 == 0
		r.EmailAddresses = make([]string, i%3)
		r.PhoneNumbers = make([]string, i%2)
		r.Relatives = make([]string, i%4)
		records = append(records, r)

		b := breachAt(int64(i), base.Add(-time.Duration(i)*time.Hour), i%3 == 0, classes[:i%len(classes)]...)
		if i%2 == 0 {
			b.ResolutionReason = domain.ResolvedAutomatically
		}
		breaches = append(breaches, b)
	}

	for _, opts := range []Options{{}, {Premium: true}, {AdditionalRemovalStatuses: true}, {Premium: true, AdditionalRemovalStatuses: true}} {
		s := Summarize(ClassifyAll(Merge(breaches, records), opts))
		sum := bucketSum(s)
		require.Equal(t, s.Total.Records, sum.Records)
		require.Equal(t, s.Total.DataPoints, sum.DataPoints)
		require.Equal(t, s.Total.DataPoints.Total(), sum.DataPoints.Total())
		require.Equal(t, s.Total, s.Unresolved().plus(s.Fixed()))
		require.Equal(t, 80, s.Total.Records)
	}
}

func TestDataPoints_TopCategories(t *testing.T) {
	t.Parallel()

	d := DataPoints{EmailAddresses: 5, PhoneNumbers: 3, Addresses: 3, Passwords: 1, Other: 2}

	assert.Equal(t, []Category{
		{"email-addresses", 5},
		{"addresses", 3},
		{"phone-numbers", 3},
		{"other", 2},
		{"passwords", 1},
	}, d.Categories())

	top := d.TopCategories(2)
	assert.Equal(t, []Category{
		{"email-addresses", 5},
		{"addresses", 3},
		{"other", 6},
	}, top)

	total := 0
	for _, c := range top {
		total += c.Count
	}
	assert.Equal(t, d.Total(), total)

	assert.Equal(t, []Category{
		{"email-addresses", 5},
		{"addresses", 3},
		{"phone-numbers", 3},
		{"other", 3},
	}, d.TopCategories(4))

	assert.Len(t, d.TopCategories(0), 5)
	assert.Empty(t, DataPoints{}.Categories())
}
