package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seolens/seolens/models"
)

func TestCheckTitleTag(t *testing.T) {
	run := checkTitleTag(testThresholds())

	t.Run("missing", func(t *testing.T) {
		r := run(context.Background(), docInput(t, `<html><head></head><body></body></html>`))
		assert.Equal(t, models.StatusError, r.Status)
		assert.Equal(t, "Missing title tag", r.Message)
	})

	t.Run("optimal", func(t *testing.T) {
		r := run(context.Background(), docInput(t, `<html><head><title>Complete Guide to Industrial Widget Machines</title></head><body></body></html>`))
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "optimal (44 characters)")
	})

	t.Run("too short", func(t *testing.T) {
		r := run(context.Background(), docInput(t, `<html><head><title>Widgets</title></head><body></body></html>`))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "too short")
	})

	t.Run("mentions keyword", func(t *testing.T) {
		in := docInput(t, `<html><head><title>Complete Guide to Industrial Widget Machines</title></head><body></body></html>`)
		in.Keywords = []string{"widget"}
		r := run(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, `mentions "widget"`)
	})

	t.Run("keyword absent", func(t *testing.T) {
		in := docInput(t, `<html><head><title>Complete Guide to Industrial Widget Machines</title></head><body></body></html>`)
		in.Keywords = []string{"gadget"}
		r := run(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "mentions no target keyword")
	})
}

func TestCheckMetaDescription(t *testing.T) {
	run := checkMetaDescription(testThresholds())

	r := run(context.Background(), docInput(t, `<html><head></head><body></body></html>`))
	assert.Equal(t, models.StatusError, r.Status)

	short := `<html><head><meta name="description" content="Too short."></head><body></body></html>`
	r = run(context.Background(), docInput(t, short))
	assert.Equal(t, models.StatusWarning, r.Status)
	assert.Contains(t, r.Message, "too short")

	optimal := `<html><head><meta name="description" content="Learn how industrial widget machines are designed, assembled, and maintained, with advice from our team."></head><body></body></html>`
	r = run(context.Background(), docInput(t, optimal))
	assert.Equal(t, models.StatusGood, r.Status)
	assert.Contains(t, r.Message, "optimal")
}

func TestCheckHeadingStructure(t *testing.T) {
	t.Run("no h1", func(t *testing.T) {
		r := checkHeadingStructure(context.Background(), docInput(t, `<html><body><h2>Section</h2></body></html>`))
		assert.Equal(t, models.StatusError, r.Status)
		assert.Equal(t, "No H1 heading found", r.Message)
	})

	t.Run("clean", func(t *testing.T) {
		r := checkHeadingStructure(context.Background(), docInput(t, `<html><body><h1>Widgets</h1><h2>Assembly</h2></body></html>`))
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "2 headings")
	})

	t.Run("duplicate h1 and level skip", func(t *testing.T) {
		r := checkHeadingStructure(context.Background(), docInput(t, `<html><body><h1>One</h1><h1>Two</h1><h4>Deep</h4></body></html>`))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "2 H1 headings")
		assert.Contains(t, r.Message, "skip from H1 to H4")
	})

	t.Run("h1 without keyword", func(t *testing.T) {
		in := docInput(t, `<html><body><h1>All about widgets</h1></body></html>`)
		in.Keywords = []string{"gadget"}
		r := checkHeadingStructure(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "H1 mentions no target keyword")
	})
}

func TestCheckContentLength(t *testing.T) {
	run := checkContentLength(testThresholds())

	thin := `<html><body><article><p>Just a few words here.</p></article></body></html>`
	r := run(context.Background(), docInput(t, thin))
	assert.Equal(t, models.StatusWarning, r.Status)
	assert.Contains(t, r.Message, "Thin content")

	para := strings.Repeat("The widget assembly line turns raw steel into precision parts. ", 70)
	substantial := `<html><body><article><h1>Widgets</h1><p>` + para + `</p></article></body></html>`
	r = run(context.Background(), docInput(t, substantial))
	assert.Equal(t, models.StatusGood, r.Status)
	assert.Contains(t, r.Message, "Substantial content")
}

func TestCheckKeywordUsage(t *testing.T) {
	diverse := `<html><body><p>Our factory builds precision widget housings for aerospace clients.
		Each unit passes thermal, vibration, and pressure testing before shipment. Engineers
		document tolerances, review failures, and publish monthly reliability reports. Customers
		receive calibration certificates alongside every order, plus lifetime support.</p></body></html>`

	t.Run("empty page", func(t *testing.T) {
		r := checkKeywordUsage(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "No text content to analyze", r.Message)
	})

	t.Run("keywords present", func(t *testing.T) {
		in := docInput(t, diverse)
		in.Keywords = []string{"widget"}
		r := checkKeywordUsage(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "appear in the content")
	})

	t.Run("keywords missing", func(t *testing.T) {
		in := docInput(t, diverse)
		in.Keywords = []string{"gadget"}
		r := checkKeywordUsage(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "not found in content: gadget")
	})

	t.Run("stuffing", func(t *testing.T) {
		stuffed := `<html><body><p>` + strings.Repeat("widget ", 30) + `assembly line report</p></body></html>`
		r := checkKeywordUsage(context.Background(), docInput(t, stuffed))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "keyword stuffing")
		assert.Contains(t, r.Message, "widget")
	})

	t.Run("natural without targets", func(t *testing.T) {
		r := checkKeywordUsage(context.Background(), docInput(t, diverse))
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Keyword usage looks natural", r.Message)
	})
}

func TestCheckContentQuality(t *testing.T) {
	t.Run("too little content", func(t *testing.T) {
		r := checkContentQuality(context.Background(), docInput(t, `<html><body><p>One line only.</p></body></html>`))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "sentence")
	})

	t.Run("reads well", func(t *testing.T) {
		simple := `<html><body><p>The cat sat on the mat. The dog ran to the park.
			We like to build things. The sun is out today. Work went well this week.
			The team ships on time.</p></body></html>`
		r := checkContentQuality(context.Background(), docInput(t, simple))
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "Content reads well")
	})
}

func TestCheckImageAltText(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		r := checkImageAltText(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusInfo, r.Status)
	})

	t.Run("full coverage", func(t *testing.T) {
		r := checkImageAltText(context.Background(), docInput(t,
			`<html><body><img src="a.png" alt="Widget housing"><img src="b.png" alt="Assembly line"></body></html>`))
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "2 of 2 images have alt text", r.Message)
	})

	t.Run("partial coverage", func(t *testing.T) {
		r := checkImageAltText(context.Background(), docInput(t,
			`<html><body><img src="a.png" alt="x"><img src="b.png" alt="y"><img src="c.png" alt="z"><img src="d.png"></body></html>`))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "3 of 4")
	})

	t.Run("poor coverage", func(t *testing.T) {
		r := checkImageAltText(context.Background(), docInput(t,
			`<html><body><img src="a.png" alt="x"><img src="b.png"><img src="c.png"></body></html>`))
		assert.Equal(t, models.StatusError, r.Status)
		assert.Contains(t, r.Message, "Only 1 of 3")
	})
}

func TestCheckOutboundLinks(t *testing.T) {
	healthy := `<html><body>
		<a href="/a">A</a><a href="/b">B</a><a href="/c">C</a>
		<a href="https://partner.example/spec">Spec</a>
	</body></html>`
	r := checkOutboundLinks(context.Background(), docInput(t, healthy))
	assert.Equal(t, models.StatusGood, r.Status)
	assert.Equal(t, "Healthy link mix: 3 internal, 1 external", r.Message)

	sparse := `<html><body><a href="/a">A</a></body></html>`
	r = checkOutboundLinks(context.Background(), docInput(t, sparse))
	assert.Equal(t, models.StatusWarning, r.Status)
	assert.Contains(t, r.Message, "no external links")
	assert.Contains(t, r.Message, "only 1 internal link")
}
