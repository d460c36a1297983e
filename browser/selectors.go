package browser

// Instagram DOM selectors. Instagram changes its markup often; keep every
// selector here so breakage is fixed in one place.

const (
	baseURL      = "https://www.instagram.com"
	loginURL     = baseURL + "/accounts/login/"
	newDirectURL = baseURL + "/direct/new/"

	UsernameInput = `input[name="username"]`
	PasswordInput = `input[name="password"]`
	SubmitButton  = `button[type="submit"]`
	LoginError    = `#slfErrorAlert, div[role="alert"]`
	HomeIndicator = `svg[aria-label="Home"]`

	PostLink    = `a[href*="/p/"]`
	PostArticle = `article`

	StoryRing  = `header canvas, header [role="button"] img, header button[aria-label*="story"]`
	StoryReply = `textarea[placeholder*="Reply"], textarea[placeholder*="Send message"], div[contenteditable="true"]`

	DirectSearch  = `input[name="queryBox"], input[placeholder*="Search"]`
	DirectMessage = `div[role="textbox"][contenteditable="true"], textarea[placeholder*="Message"]`
)

var (
	// likeLabels mark a like button that has not been pressed yet.
	likeLabels = []string{"Like", "Подобається"}
	// unlikeLabels mark an already liked post.
	unlikeLabels = []string{"Unlike", "Не подобається"}
	// dismissLabels are the buttons of post-login dialogs.
	dismissLabels = []string{"Not Now", "Not now", "Не зараз"}
	// nextLabels advance the new message dialog to the chat.
	nextLabels = []string{"Chat", "Next", "Далі"}
)
