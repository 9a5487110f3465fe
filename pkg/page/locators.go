package page

// Locators for the application's views and dialogs.
// ByTagName doesn't work inside shadow roots, so nested elements are found with ByCSSSelector.
var (
	// fake login page served by the development app server
	LoginEmail  = Join(ID("email"))
	LoginButton = Join(ID("submit-login"))

	Document = []Loc(nil)
	Body     = Join(Tag("body"))

	OptionsDialog   = Join(Body, CSS("dialog.options > span"))
	OptionsOKButton = Join(OptionsDialog, ID("ok-button"))
	ThemeSelect     = Join(OptionsDialog, ID("theme-select"))
	GainTypeSelect  = Join(OptionsDialog, ID("gain-type-select"))
	PreAmpRange     = Join(OptionsDialog, ID("pre-amp-range"))

	InfoDialog        = Join(Body, CSS("dialog.song-info > span"))
	InfoArtist        = Join(InfoDialog, ID("artist"))
	InfoTitle         = Join(InfoDialog, ID("title"))
	InfoAlbum         = Join(InfoDialog, ID("album"))
	InfoDisc          = Join(InfoDialog, ID("disc"))
	InfoTrack         = Join(InfoDialog, ID("track"))
	InfoDate          = Join(InfoDialog, ID("date"))
	InfoLength        = Join(InfoDialog, ID("length"))
	InfoRating        = Join(InfoDialog, ID("rating"))
	InfoTags          = Join(InfoDialog, ID("tags"))
	InfoDismissButton = Join(InfoDialog, ID("dismiss-button"))

	StatsDialog       = Join(Body, CSS("dialog.stats > span"))
	StatsDecadesChart = Join(StatsDialog, ID("decades-chart"))
	StatsRatingsChart = Join(StatsDialog, ID("ratings-chart"))

	Menu           = Join(Body, CSS("dialog.menu > span"))
	MenuFullscreen = Join(Menu, ID("fullscreen"))
	MenuOptions    = Join(Menu, ID("options"))
	MenuStats      = Join(Menu, ID("stats"))
	MenuInfo       = Join(Menu, ID("info"))
	MenuPlay       = Join(Menu, ID("play"))
	MenuUpdate     = Join(Menu, ID("update"))
	MenuRemove     = Join(Menu, ID("remove"))
	MenuTruncate   = Join(Menu, ID("truncate"))

	PlayView         = Join(Tag("play-view"))
	MenuButton       = Join(PlayView, ID("menu-button"))
	CoverImage       = Join(PlayView, ID("cover-img"))
	RatingOverlayDiv = Join(PlayView, ID("rating-overlay"))
	ArtistDiv        = Join(PlayView, ID("artist"))
	TitleDiv         = Join(PlayView, ID("title"))
	AlbumDiv         = Join(PlayView, ID("album"))
	TimeDiv          = Join(PlayView, ID("time"))
	PrevButton       = Join(PlayView, ID("prev"))
	PlayPauseButton  = Join(PlayView, ID("play-pause"))
	NextButton       = Join(PlayView, ID("next"))

	AudioWrapper  = Join(PlayView, CSS("audio-wrapper"))
	Audio         = Join(AudioWrapper, CSS("audio"))
	PlaylistTable = Join(PlayView, ID("playlist"), CSS("table"))

	UpdateDialog       = Join(Body, CSS("dialog.update > span"))
	UpdateArtist       = Join(UpdateDialog, ID("artist"))
	UpdateTitle        = Join(UpdateDialog, ID("title"))
	UpdateOneStar      = Join(UpdateDialog, CSS("#rating a:nth-child(1)"))
	UpdateTwoStars     = Join(UpdateDialog, CSS("#rating a:nth-child(2)"))
	UpdateThreeStars   = Join(UpdateDialog, CSS("#rating a:nth-child(3)"))
	UpdateFourStars    = Join(UpdateDialog, CSS("#rating a:nth-child(4)"))
	UpdateFiveStars    = Join(UpdateDialog, CSS("#rating a:nth-child(5)"))
	UpdateTagsTextarea = Join(UpdateDialog, ID("tags-textarea"))
	UpdateTagSuggester = Join(UpdateDialog, ID("tag-suggester"))
	UpdateCloseImage   = Join(UpdateDialog, ID("close-icon"))

	FullscreenOverlay = Join(PlayView, CSS("fullscreen-overlay"))
	CurrentArtistDiv  = Join(FullscreenOverlay, ID("current-artist"))
	CurrentTitleDiv   = Join(FullscreenOverlay, ID("current-title"))
	CurrentAlbumDiv   = Join(FullscreenOverlay, ID("current-album"))
	NextArtistDiv     = Join(FullscreenOverlay, ID("next-artist"))
	NextTitleDiv      = Join(FullscreenOverlay, ID("next-title"))
	NextAlbumDiv      = Join(FullscreenOverlay, ID("next-album"))

	SearchView                = Join(Tag("search-view"))
	KeywordsInput             = Join(SearchView, ID("keywords-input"))
	TagsInput                 = Join(SearchView, ID("tags-input"))
	MinDateInput              = Join(SearchView, ID("min-date-input"))
	MaxDateInput              = Join(SearchView, ID("max-date-input"))
	FirstTrackCheckbox        = Join(SearchView, ID("first-track-checkbox"))
	UnratedCheckbox           = Join(SearchView, ID("unrated-checkbox"))
	MinRatingSelect           = Join(SearchView, ID("min-rating-select"))
	OrderByLastPlayedCheckbox = Join(SearchView, ID("order-by-last-played-checkbox"))
	MaxPlaysInput             = Join(SearchView, ID("max-plays-input"))
	FirstPlayedSelect         = Join(SearchView, ID("first-played-select"))
	LastPlayedSelect          = Join(SearchView, ID("last-played-select"))
	PresetSelect              = Join(SearchView, ID("preset-select"))
	SearchButton              = Join(SearchView, ID("search-button"))
	ResetButton               = Join(SearchView, ID("reset-button"))
	LuckyButton               = Join(SearchView, ID("lucky-button"))
	AppendButton              = Join(SearchView, ID("append-button"))
	InsertButton              = Join(SearchView, ID("insert-button"))
	ReplaceButton             = Join(SearchView, ID("replace-button"))

	SearchResultsCheckbox = Join(SearchView, ID("results-table"), CSS(`th input[type="checkbox"]`))
	SearchResultsTable    = Join(SearchView, ID("results-table"), CSS("table"))
)

// Option text for MinRatingSelect. Stars are separated by U+2009 THIN SPACE.
const (
	OneStar    = "★"
	TwoStars   = "★ ★"
	ThreeStars = "★ ★ ★"
	FourStars  = "★ ★ ★ ★"
	FiveStars  = "★ ★ ★ ★ ★"
)

// Option text for FirstPlayedSelect and LastPlayedSelect.
const (
	UnsetTime   = ""
	OneDay      = "one day"
	OneWeek     = "one week"
	OneMonth    = "one month"
	ThreeMonths = "three months"
	SixMonths   = "six months"
	OneYear     = "one year"
	ThreeYears  = "three years"
	FiveYears   = "five years"
)

// Option text and values for ThemeSelect.
const (
	ThemeAuto       = "Auto"
	ThemeLight      = "Light"
	ThemeDark       = "Dark"
	ThemeAutoValue  = "0"
	ThemeLightValue = "1"
	ThemeDarkValue  = "2"
)

// Option text and values for GainTypeSelect.
const (
	GainAuto       = "Auto"
	GainAlbum      = "Album"
	GainTrack      = "Track"
	GainNone       = "None"
	GainAutoValue  = "3"
	GainAlbumValue = "0"
	GainTrackValue = "1"
	GainNoneValue  = "2"
)

// Option text for PresetSelect, matching the presets sent with the app config.
const (
	PresetInstrumentalOld = "instrumental old"
	PresetMellow          = "mellow"
	PresetPlayedOnce      = "played once"
	PresetNewAlbums       = "new albums"
	PresetUnrated         = "unrated"
)

// Shortcut is a keydown event handled by the app.
type Shortcut struct {
	Key     string
	KeyCode int
	Alt     bool
}

// shortcuts handled by the app
var (
	ShortcutOptions    = Shortcut{Key: "o", KeyCode: 79, Alt: true} // show options dialog
	ShortcutInfo       = Shortcut{Key: "i", KeyCode: 73, Alt: true} // show song info dialog
	ShortcutFullscreen = Shortcut{Key: "v", KeyCode: 86, Alt: true} // toggle fullscreen overlay
	ShortcutNext       = Shortcut{Key: "n", KeyCode: 78, Alt: true} // play next song
	ShortcutUpdate     = Shortcut{Key: "r", KeyCode: 82, Alt: true} // show rate/tag dialog
)

// Named keys for PressKey.
const (
	KeyTab        = "Tab"
	KeyEscape     = "Escape"
	KeyEnter      = "Enter"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
)

// Modifier is a key held during a click.
type Modifier string

// supported modifiers
const (
	NoModifier Modifier = ""
	ShiftKey   Modifier = "Shift"
	ControlKey Modifier = "Control"
)
