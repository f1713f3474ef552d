package classify_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/okian/cohort/internal/adapters/repository"
	classify "github.com/okian/cohort/internal/domain/classify"
	"github.com/okian/cohort/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDetect(t *testing.T) {
	Convey("Given visit signals", t, func() {
		Convey("When utm_medium is cpc", func() {
			q := url.Values{"utm_medium": {"cpc"}, "utm_source": {"google"}}

			Convey("Then the visit is paid even with a search referrer", func() {
				So(classify.Detect("https://www.google.com/search?q=x", q), ShouldEqual, types.SourcePaid)
			})
		})

		Convey("When utm_medium is ppc", func() {
			q := url.Values{"utm_medium": {"ppc"}}

			So(classify.Detect("", q), ShouldEqual, types.SourcePaid)
		})

		Convey("When utm_source names google and utm_medium is organic", func() {
			q := url.Values{"utm_source": {"google_search"}, "utm_medium": {"organic"}}

			Convey("Then the visit is organic without consulting the referrer", func() {
				So(classify.Detect("", q), ShouldEqual, types.SourceOrganic)
			})
		})

		Convey("When the referrer is a search engine", func() {
			cases := []string{
				"https://www.google.com/search?q=comparison",
				"https://www.google.co.uk/search?q=comparison",
				"https://duckduckgo.com/?q=tools",
				"https://www.bing.com/search?q=alternatives",
			}

			for _, ref := range cases {
				So(classify.Detect(ref, url.Values{}), ShouldEqual, types.SourceOrganic)
			}
		})

		Convey("When the referrer is a non-search site", func() {
			So(classify.Detect("https://news.ycombinator.com/item?id=1", url.Values{}), ShouldEqual, types.SourceReferral)
		})

		Convey("When the referrer does not parse to a host", func() {
			So(classify.Detect("::::", url.Values{}), ShouldEqual, types.SourceUnknown)
			So(classify.Detect("not a url at all%%%", url.Values{}), ShouldEqual, types.SourceUnknown)
		})

		Convey("When there is no referrer and no decisive tagging", func() {
			So(classify.Detect("", url.Values{}), ShouldEqual, types.SourceDirect)
			So(classify.Detect("", url.Values{"utm_medium": {"email"}}), ShouldEqual, types.SourceDirect)
		})

		Convey("When a hostname merely contains an engine name", func() {
			Convey("Then label matching does not fire on substrings", func() {
				So(classify.Detect("https://notgoogle.example.com/", url.Values{}), ShouldEqual, types.SourceReferral)
			})
		})
	})
}

func TestClassifierPersisted(t *testing.T) {
	Convey("Given a classifier over a visitor store", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		defer store.Close()

		c := classify.New(store, classify.WithTTL(time.Hour))

		Convey("When the first page view comes from search", func() {
			got := c.Persisted(ctx, "https://www.google.com/search?q=x", url.Values{})

			Convey("Then the classification is organic and cached", func() {
				So(got, ShouldEqual, types.SourceOrganic)

				v, err := store.Get(ctx, classify.TrafficSourceKey)
				So(err, ShouldBeNil)
				So(v, ShouldEqual, "organic")
			})

			Convey("And later direct navigations reuse the cached source", func() {
				So(c.Persisted(ctx, "", url.Values{}), ShouldEqual, types.SourceOrganic)
			})
		})

		Convey("When the store holds a corrupted value", func() {
			So(store.Set(ctx, classify.TrafficSourceKey, "garbage", time.Hour), ShouldBeNil)

			Convey("Then it collapses to unknown instead of leaking", func() {
				So(c.Persisted(ctx, "", url.Values{}), ShouldEqual, types.SourceUnknown)
			})
		})

		Convey("When no store is available", func() {
			nilClassifier := classify.New(nil)

			Convey("Then classification degrades to unknown", func() {
				So(nilClassifier.Persisted(ctx, "https://www.google.com/", url.Values{}), ShouldEqual, types.SourceUnknown)
			})
		})
	})
}

func TestClassifierEligible(t *testing.T) {
	Convey("Given a classifier", t, func() {
		ctx := context.Background()

		Convey("When the visitor arrived from search", func() {
			c := classify.New(repository.NewMemStore())

			So(c.Eligible(ctx, "https://www.bing.com/search?q=x", url.Values{}), ShouldBeTrue)
		})

		Convey("When the visitor arrived directly", func() {
			c := classify.New(repository.NewMemStore())

			So(c.Eligible(ctx, "", url.Values{}), ShouldBeFalse)
		})

		Convey("When the visitor arrived from a paid campaign", func() {
			c := classify.New(repository.NewMemStore())

			So(c.Eligible(ctx, "https://www.google.com/", url.Values{"utm_medium": {"cpc"}}), ShouldBeFalse)
		})
	})
}
