package layout

// Raw layouts carry two header rows (lesson names, then D/Y/N sub-headers).
// Processed layouts carry a single header row of database-key tokens.
const (
	rawDataStart       = 2
	processedDataStart = 1
)

// Rank categories shared by all layouts.
const (
	RankClass    = "Sınıf"
	RankSchool   = "Okul"
	RankInst     = "Kurum"
	RankDistrict = "İlçe"
	RankCity     = "İl"
	RankGeneral  = "Genel"
)

func triple(name string, first int) LessonColumns {
	return LessonColumns{Name: name, Correct: first, Incorrect: first + 1, Net: first + 2, Point: None}
}

func tripleWithPoint(name string, first, point int) LessonColumns {
	l := triple(name, first)
	l.Point = point
	return l
}

func span(from, to int) []int {
	cols := make([]int, 0, to-from+1)
	for c := from; c <= to; c++ {
		cols = append(cols, c)
	}
	return cols
}

// flatRanks lays out class/school/district/city/general ranks from first.
func flatRanks(school string, first int) []RankColumn {
	return []RankColumn{
		{Label: RankClass, Col: first},
		{Label: school, Col: first + 1},
		{Label: RankDistrict, Col: first + 2},
		{Label: RankCity, Col: first + 3},
		{Label: RankGeneral, Col: first + 4},
	}
}

// namespacedRanks prefixes each flat label with the score type.
func namespacedRanks(scoreType, school string, first int) []RankColumn {
	ranks := flatRanks(school, first)
	for i := range ranks {
		ranks[i].Label = scoreType + " " + ranks[i].Label
	}
	return ranks
}

func concatRanks(sets ...[]RankColumn) []RankColumn {
	var out []RankColumn
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// AYT score types.
const (
	ScoreSAY = "SAY"
	ScoreSOZ = "SÖZ"
	ScoreEA  = "EA"
)

var lgsRaw = ColumnMap{
	ExamType:         LGS,
	Variant:          Raw,
	ExpectedColumns:  30,
	DataStartRow:     rawDataStart,
	StudentNumberCol: 0,
	NameCol:          1,
	ClassCol:         2,
	NationalIDCol:    None,
	Lessons: []LessonColumns{
		triple("Türkçe", 3),
		triple("Matematik", 6),
		triple("Fen Bilimleri", 9),
		triple("T.C. İnkılap Tarihi ve Atatürkçülük", 12),
		triple("Din Kültürü ve Ahlak Bilgisi", 15),
		triple("İngilizce", 18),
	},
	SkipColumns: span(21, 23), // totals
	Scores:      []ScoreColumn{{Type: "LGS", Col: 24}},
	Ranks:       flatRanks(RankSchool, 25),
}

var tytRaw = ColumnMap{
	ExamType:         TYT,
	Variant:          Raw,
	ExpectedColumns:  51,
	DataStartRow:     rawDataStart,
	StudentNumberCol: 0,
	NationalIDCol:    1,
	NameCol:          2,
	ClassCol:         3,
	Lessons: []LessonColumns{
		triple("Türkçe", 4),
		triple("Tarih", 7),
		triple("Coğrafya", 10),
		triple("Felsefe", 13),
		triple("Din Kültürü", 16),
		triple("Fizik", 25),
		triple("Kimya", 28),
		triple("Biyoloji", 31),
	},
	MergeRules: []MergeRule{
		{Name: "Matematik", Sources: [][3]int{{19, 20, 21}, {22, 23, 24}}},
	},
	// 34-36 totals, 43-48 group totals, 49 raw score, 50 booklet
	SkipColumns: append(append(span(34, 36), span(43, 48)...), 49, 50),
	Scores:      []ScoreColumn{{Type: "TYT", Col: 37}},
	Ranks:       flatRanks(RankSchool, 38),
}

var aytRaw = ColumnMap{
	ExamType:         AYT,
	Variant:          Raw,
	ExpectedColumns:  72,
	DataStartRow:     rawDataStart,
	StudentNumberCol: 0,
	NationalIDCol:    1,
	NameCol:          2,
	ClassCol:         3,
	MergeRules: []MergeRule{
		// Dil ve Anlatım + Edebiyat
		{Name: "Türk Dili ve Edebiyatı", Sources: [][3]int{{4, 5, 6}, {7, 8, 9}}},
	},
	Lessons: []LessonColumns{
		triple("Tarih-1", 10),
		triple("Coğrafya-1", 13),
		triple("Tarih-2", 16),
		triple("Coğrafya-2", 19),
		triple("Felsefe Grubu", 22),
		triple("Din Kültürü", 25),
		triple("Matematik", 28),
		triple("Geometri", 31),
		triple("Fizik", 34),
		triple("Kimya", 37),
		triple("Biyoloji", 40),
	},
	// 43-45 totals, 64-66 raw scores, 67-69 percentiles, 70 booklet, 71 session
	SkipColumns: append(span(43, 45), span(64, 71)...),
	Scores: []ScoreColumn{
		{Type: ScoreSAY, Col: 46},
		{Type: ScoreSOZ, Col: 47},
		{Type: ScoreEA, Col: 48},
	},
	Ranks: concatRanks(
		namespacedRanks(ScoreSAY, RankSchool, 49),
		namespacedRanks(ScoreSOZ, RankSchool, 54),
		namespacedRanks(ScoreEA, RankSchool, 59),
	),
}

var tytProcessed = ColumnMap{
	ExamType:         TYT,
	Variant:          Processed,
	ExpectedColumns:  38,
	DataStartRow:     processedDataStart,
	StudentNumberCol: 0,
	NationalIDCol:    1,
	NameCol:          2,
	ClassCol:         3,
	Lessons: []LessonColumns{
		tripleWithPoint("Türkçe", 4, 16),
		tripleWithPoint("Sosyal Bilimler", 7, 17),
		tripleWithPoint("Temel Matematik", 10, 18),
		tripleWithPoint("Fen Bilimleri", 13, 19),
		triple("Tarih", 26),
		triple("Coğrafya", 29),
		triple("Felsefe", 32),
		triple("Din Kültürü", 35),
	},
	Scores: []ScoreColumn{{Type: "TYT", Col: 20}},
	Ranks:  flatRanks(RankInst, 21),
}

var aytProcessed = ColumnMap{
	ExamType:         AYT,
	Variant:          Processed,
	ExpectedColumns:  56,
	DataStartRow:     processedDataStart,
	StudentNumberCol: 0,
	NationalIDCol:    1,
	NameCol:          2,
	ClassCol:         3,
	Lessons: []LessonColumns{
		triple("Türk Dili ve Edebiyatı", 4),
		triple("Tarih-1", 7),
		triple("Coğrafya-1", 10),
		triple("Tarih-2", 13),
		triple("Coğrafya-2", 16),
		triple("Felsefe Grubu", 19),
		triple("Din Kültürü", 22),
		triple("Matematik", 25),
		triple("Fizik", 28),
		triple("Kimya", 31),
		triple("Biyoloji", 34),
	},
	SkipColumns: []int{55}, // session
	Scores: []ScoreColumn{
		{Type: ScoreSAY, Col: 37},
		{Type: ScoreSOZ, Col: 38},
		{Type: ScoreEA, Col: 39},
	},
	Ranks: concatRanks(
		namespacedRanks(ScoreSAY, RankInst, 40),
		namespacedRanks(ScoreSOZ, RankInst, 45),
		namespacedRanks(ScoreEA, RankInst, 50),
	),
}

// Processed sentinel tokens found in the first header cell.
const (
	SentinelGeneric = "ogrenci_no"
	SentinelTYT     = "tyt_ogrenci_no"
	SentinelAYT     = "ayt_ogrenci_no"
)

// ProcessedSentinel reports whether a header cell marks a processed sheet and,
// when the token names one, the exam type it implies.
func ProcessedSentinel(cell string) (ExamType, bool) {
	switch cell {
	case SentinelGeneric:
		return "", true
	case SentinelTYT:
		return TYT, true
	case SentinelAYT:
		return AYT, true
	}
	return "", false
}
