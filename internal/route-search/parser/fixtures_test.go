package parser

import (
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<!DOCTYPE html>
<html><head><title>検索結果</title></head>
<body>
<div id="srline" class="elmRouteDetail">
  <div id="route01">
    <div class="routeSummary">
      <h2 class="title">ルート1</h2>
      <ul class="priority"><li><span>早</span></li><li><span>楽</span></li></ul>
      <ul class="summary">
        <li class="time"><span>09:00発→<span class="mark">09:45着</span></span><!-- total -->45分<!-- onboard -->（乗車30分）</li>
        <li class="transfer">乗換：<span class="mark">1</span>回</li>
        <li class="fare"><span class="mark">460</span>円<span class="icnIc">IC</span>IC優先</li>
        <li class="distance">12.3km</li>
      </ul>
    </div>
    <div class="routeDetail">
      <div class="station">
        <ul class="time"><li>09:00</li></ul>
        <p class="icon"><span class="icnStaDep">発</span></p>
        <dl><dt><a href="/station/1">新宿</a></dt></dl>
      </div>
      <div class="fareSection">
        <div class="access">
          <ul class="info">
            <li class="transport"><div><span class="icon"></span>JR山手線外回り<span class="destination">渋谷行<span class="icnFirstTrain">始発</span></span></div></li>
            <li class="platform">[発] 14番線 → [着] 2番線</li>
          </ul>
        </div>
        <p class="fare"><span>160</span>円</p>
      </div>
      <div class="station">
        <ul class="time"><li>09:10</li></ul>
        <dl><dt><a href="/station/2">渋谷</a></dt></dl>
      </div>
      <div class="walk">徒歩</div>
    </div>
  </div>
  <div id="route02">
    <div class="routeSummary">
      <h2 class="title">ルート2</h2>
      <ul class="summary">
        <li class="time"><span>09:05発→<span class="mark">09:50着</span></span>45分</li>
        <li class="transfer">乗換：<span class="mark">0</span>回</li>
        <li class="fare"><span class="mark">300</span>円<span class="small">現金優先</span></li>
      </ul>
    </div>
  </div>
  <div id="route03">
    <p>広告</p>
  </div>
  <div id="routeX">
    <div class="routeSummary"><h2 class="title">偽物</h2></div>
  </div>
  <div class="wrapper">
    <div id="route09">
      <div class="routeSummary"><h2 class="title">入れ子</h2></div>
    </div>
  </div>
</div>
</body></html>`

// recordingSink keeps every diagnostic it receives.
type recordingSink struct {
	mu  sync.Mutex
	got []Diagnostic
}

func (r *recordingSink) Report(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
}

func (r *recordingSink) signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, 0, len(r.got))
	for _, d := range r.got {
		out = append(out, d.Signal)
	}
	return out
}

func document(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

// routeFragment wraps summary and detail markup into a single route fragment.
func routeFragment(t *testing.T, inner string) Fragment {
	t.Helper()
	doc := document(t, `<div id="route01">`+inner+`</div>`)
	sel := doc.Find("div#route01")
	require.Equal(t, 1, sel.Length())
	return Fragment{ID: "route01", Selection: sel}
}

func summaryWith(items string) string {
	return `<div class="routeSummary"><ul class="summary">` + items + `</ul></div>`
}
