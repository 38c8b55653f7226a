package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytransit-data/pkg/route-search/models"
)

func strp(s string) *string { return &s }

func TestSplitDuration(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantTotal   *string
		wantOnBoard *string
	}{
		{name: "compound form", text: "45分（乗車30分）", wantTotal: strp("45分"), wantOnBoard: strp("30分")},
		{name: "bare duration is duplicated", text: "45分", wantTotal: strp("45分"), wantOnBoard: strp("45分")},
		{name: "boarding clause without compound match", text: "45分（乗車", wantTotal: strp("45分（乗車"), wantOnBoard: nil},
		{name: "hours before minutes keeps the compound branch", text: "1時間5分（乗車50分）", wantTotal: strp("5分"), wantOnBoard: strp("50分")},
		{name: "no minute unit", text: "不明", wantTotal: nil, wantOnBoard: nil},
		{name: "empty", text: "", wantTotal: nil, wantOnBoard: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, onBoard := splitDuration(tt.text)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantOnBoard, onBoard)
		})
	}
}

func TestSplitPlatforms(t *testing.T) {
	tests := []struct {
		text    string
		wantDep *string
		wantArr *string
	}{
		{text: "[発] A1 → [着] B2", wantDep: strp("A1"), wantArr: strp("B2")},
		{text: "[発] A1", wantDep: strp("A1"), wantArr: nil},
		{text: "→ [着] B2", wantDep: nil, wantArr: strp("B2")},
		{text: "[発]3番線→[着]4番線", wantDep: strp("3番線"), wantArr: strp("4番線")},
		{text: "番線情報なし", wantDep: nil, wantArr: nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			dep, arr := splitPlatforms(tt.text)
			assert.Equal(t, tt.wantDep, dep)
			assert.Equal(t, tt.wantArr, arr)
		})
	}
}

func TestExtractRouteWithoutSummary(t *testing.T) {
	fragment := routeFragment(t, `<div class="routeDetail"><div class="station"></div></div>`)

	record, ok := ExtractRoute(fragment)
	assert.False(t, ok)
	assert.Nil(t, record)
}

func TestExtractRouteMinimalSummary(t *testing.T) {
	fragment := routeFragment(t, `<div class="routeSummary"></div>`)

	record, ok := ExtractRoute(fragment)
	require.True(t, ok)
	assert.Nil(t, record.RouteID)
	assert.Nil(t, record.DepartureTime)
	assert.Nil(t, record.ArrivalTime)
	assert.Nil(t, record.TotalTime)
	assert.Nil(t, record.TimeOnBoard)
	assert.Nil(t, record.Transfers)
	assert.Nil(t, record.Fare)
	assert.Nil(t, record.FareType)
	assert.Nil(t, record.Distance)
	assert.Equal(t, []string{}, record.Priority)
	assert.Equal(t, models.Details{}, record.Details)
}

func TestExtractTiming(t *testing.T) {
	t.Run("departure without arrival mark", func(t *testing.T) {
		record, ok := ExtractRoute(routeFragment(t, summaryWith(`<li class="time"><span>10:00発→</span>20分</li>`)))
		require.True(t, ok)
		assert.Equal(t, "10:00", *record.DepartureTime)
		assert.Nil(t, record.ArrivalTime)
		assert.Equal(t, "20分", *record.TotalTime)
	})

	t.Run("leading whitespace text nodes are skipped", func(t *testing.T) {
		record, ok := ExtractRoute(routeFragment(t, summaryWith(`<li class="time"><span> <b>x</b> 10:00発→<span class="mark">10:20着</span></span></li>`)))
		require.True(t, ok)
		assert.Equal(t, "10:00", *record.DepartureTime)
		assert.Equal(t, "10:20", *record.ArrivalTime)
		assert.Nil(t, record.TotalTime)
		assert.Nil(t, record.TimeOnBoard)
	})

	t.Run("no span leaves every timing field empty", func(t *testing.T) {
		record, ok := ExtractRoute(routeFragment(t, summaryWith(`<li class="time">45分（乗車30分）</li>`)))
		require.True(t, ok)
		assert.Nil(t, record.DepartureTime)
		assert.Nil(t, record.TotalTime)
		assert.Nil(t, record.TimeOnBoard)
	})
}

func TestExtractTransfersAndDistance(t *testing.T) {
	record, ok := ExtractRoute(routeFragment(t, summaryWith(
		`<li class="transfer">乗換：2回</li><li class="distance"> 8.5 <span>km</span></li>`,
	)))
	require.True(t, ok)
	assert.Nil(t, record.Transfers)
	assert.Equal(t, "8.5km", *record.Distance)
}

func TestFareType(t *testing.T) {
	tests := []struct {
		name     string
		item     string
		wantType *string
	}{
		{
			name:     "qualifier wins over ic icon",
			item:     `<span class="mark">460</span>円<span class="icnIc">IC</span>IC優先<span class="note">現金優先</span>`,
			wantType: strp("現金優先"),
		},
		{
			name:     "classless span is a qualifier",
			item:     `<span class="mark">460</span>円<span>IC</span>`,
			wantType: strp("IC"),
		},
		{
			name:     "ic icon followed by text",
			item:     `<span class="mark">460</span>円<span class="icnIc"></span>IC優先`,
			wantType: strp("IC優先"),
		},
		{
			name:     "ic icon followed by element",
			item:     `<span class="mark">460</span>円<span class="icnIc"></span><b>IC優先</b>`,
			wantType: strp("IC優先"),
		},
		{
			name:     "ic icon followed by whitespace then element",
			item:     `<span class="mark">460</span>円<span class="icnIc"></span> <b>IC優先</b>`,
			wantType: strp("IC優先"),
		},
		{
			name:     "ic icon with nothing after it",
			item:     `<span class="mark">460</span>円<span class="icnIc"></span>`,
			wantType: nil,
		},
		{
			name:     "no qualifier and no icon",
			item:     `<span class="mark">460</span>円`,
			wantType: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, ok := ExtractRoute(routeFragment(t, summaryWith(`<li class="fare">`+tt.item+`</li>`)))
			require.True(t, ok)
			assert.Equal(t, "460円", *record.Fare)
			assert.Equal(t, tt.wantType, record.FareType)
		})
	}

	t.Run("no fare label means no fare type", func(t *testing.T) {
		record, ok := ExtractRoute(routeFragment(t, summaryWith(`<li class="fare"><span class="note">IC優先</span></li>`)))
		require.True(t, ok)
		assert.Nil(t, record.Fare)
		assert.Nil(t, record.FareType)
	})
}

func TestExtractDetails(t *testing.T) {
	detail := `<div class="routeSummary"></div>
	<div class="routeDetail">
		<div class="station"><ul class="time"><li>11:00</li><li>11:01</li></ul><span class="icnStaDep"></span><dl><dt>大阪</dt></dl></div>
		<div class="fareSection"><p class="fare"><span>200</span>円</p></div>
		<div class="fareSection">
			<div class="access"><ul>
				<li class="transport"><div><span class="icon"></span> </div></li>
				<li class="platform">[発] 1番線</li>
			</ul></div>
		</div>
		<div class="fareSection">
			<div class="access"><ul>
				<li class="transport"><div>阪急京都線<span class="destination">当駅始発 河原町行<span class="icnFirstTrain">当駅始発</span></span></div></li>
			</ul></div>
			<p class="fare"><span>230</span>円</p>
		</div>
		<div class="station"><dl><dt><a>京都河原町</a></dt></dl></div>
		<div><div class="station"><dl><dt><a>入れ子</a></dt></dl></div></div>
	</div>`

	record, ok := ExtractRoute(routeFragment(t, detail))
	require.True(t, ok)
	require.Len(t, record.Details, 5)

	assert.Equal(t, models.DepartureStation{Time: strp("11:00"), StationName: nil}, record.Details[0])

	assert.Equal(t, models.TransportSegment{}, record.Details[1], "fare section without access block stays empty")

	assert.Equal(t, models.TransportSegment{DeparturePlatform: strp("1番線")}, record.Details[2])

	assert.Equal(t, models.TransportSegment{
		LineName:     strp("阪急京都線"),
		Destination:  strp("河原町行"),
		IsFirstTrain: true,
		FareSegment:  strp("230円"),
	}, record.Details[3])

	assert.Equal(t, models.ArrivalStation{StationName: strp("京都河原町")}, record.Details[4])
}

func TestDestinationWithoutFirstTrainIcon(t *testing.T) {
	detail := `<div class="routeSummary"></div><div class="routeDetail"><div class="fareSection"><div class="access"><ul>
		<li class="transport"><div>御堂筋線<span class="destination">なかもず行</span></div></li>
	</ul></div></div></div>`

	record, ok := ExtractRoute(routeFragment(t, detail))
	require.True(t, ok)
	require.Len(t, record.Details, 1)

	seg := record.Details[0].(models.TransportSegment)
	assert.Equal(t, "御堂筋線", *seg.LineName)
	assert.Equal(t, "なかもず行", *seg.Destination)
	assert.False(t, seg.IsFirstTrain)
	assert.Nil(t, seg.DeparturePlatform)
	assert.Nil(t, seg.FareSegment)
}
