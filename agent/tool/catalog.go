package tool

import "github.com/cloudwego/eino/schema"

const (
	NameSearchProducts          = "search_products"
	NameRedirectToProductPage   = "redirect_to_product_page"
	NameRedirectToWebsitePage   = "redirect_to_website_page"
	NameInitiateProductOrder    = "initiate_product_order"
	NameSyncOrderOptions        = "sync_order_options"
	NameSelectOption            = "select_option"
	NameUnselectOption          = "unselect_option"
	NameIncreaseProductQuantity = "increase_product_quantity"
	NameDecreaseProductQuantity = "decrease_product_quantity"
	NameCompleteOrder           = "complete_order"
	NameExitOrderingTask        = "exit_ordering_task"
	NameEndSession              = "end_session"
)

var productTypeEnum = []string{"basic", "variant", "customizable"}

var searchProducts = Config{
	Name:      NameSearchProducts,
	Purpose:   "Search the shop catalog for products using semantic matching.",
	WhenToUse: "Call as soon as the user mentions a product name, brand, category or any product-related request.",
	Parameters: []Param{
		{Name: "query", Type: schema.String, Required: true, Desc: "The user's own search terms (e.g. 'nike shoes', 'burger', 'laptop')"},
	},
	ExecutionNotes: []string{
		"Searching takes a couple of seconds",
		"Tell the user you are looking it up while you wait",
	},
	BehaviorSteps: []string{
		"Runs a semantic search against the product catalog",
		"Returns at most 2 products ranked by similarity_score (0.0 no match, 1.0 perfect match)",
		"Each result carries product_id, product_type and redirect_url",
		"Clears any product previously shown to the user",
	},
	ResponseFormat: []Field{
		{Name: "matched", Desc: "boolean - true when the top result is a close enough match to open"},
		{Name: "summary", Desc: "string - ranked results with relevance"},
		{Name: "advice", Desc: "string - what to do next"},
	},
	CriticalRules: []string{
		"If matched is true: redirect to the top result right away, without asking",
		"If matched is false: tell the user no close match was found and suggest different keywords",
		"NEVER present several options for the user to choose between",
		"Pass product_id and product_type on exactly as returned",
	},
	Examples: []string{
		"User: \"Show me burgers\"\n→ search_products(query=\"burgers\")\n→ matched → redirect_to_product_page with the top result",
		"User: \"Looking for a laptop\"\n→ search_products(query=\"laptop\")\n→ not matched → \"I couldn't find a close match. Try 'gaming laptop'?\"",
	},
}

var redirectToProductPage = Config{
	Name:      NameRedirectToProductPage,
	Purpose:   "Open a product page in the user's browser and remember it as the product under consideration.",
	WhenToUse: "Call right after search_products matched a product. Only for products, never for general website pages.",
	Parameters: []Param{
		{Name: "redirect_url", Type: schema.String, Required: true, Desc: "Product page URL from search_products"},
		{Name: "product_id", Type: schema.Integer, Required: true, Desc: "Product identifier from search_products"},
		{Name: "product_type", Type: schema.String, Required: true, Enum: productTypeEnum, Desc: "Product type from search_products: 'basic', 'variant' or 'customizable'"},
	},
	ExecutionNotes: []string{
		"Say something like 'Taking you to [product name] now!'",
	},
	BehaviorSteps: []string{
		"Checks that the user's browser is connected",
		"Sends the redirectToPage command to the browser",
		"Remembers the product as pending until the user confirms or searches again",
		"Returns the product details when they can be loaded",
	},
	ResponseFormat: []Field{
		{Name: "redirected_to", Desc: "string - product page URL"},
		{Name: "product_details", Desc: "string - product description for discussion (may be empty)"},
	},
	CriticalRules: []string{
		"NEVER ask 'Would you like to see this product?'; redirect immediately",
		"Pass all three parameters exactly as returned by search_products",
		"Do not start the order yet; wait for the user to confirm interest",
	},
	Examples: []string{
		"search_products returned {redirect_url: \"https://site.com/product/nike\", product_id: 123, product_type: \"basic\"}\n→ redirect_to_product_page(redirect_url=\"https://site.com/product/nike\", product_id=123, product_type=\"basic\")",
	},
}

var redirectToWebsitePage = Config{
	Name:      NameRedirectToWebsitePage,
	Purpose:   "Open a general website page (home, menu, about, contact) in the user's browser.",
	WhenToUse: "Call when the user asks for a non-product page.",
	Parameters: []Param{
		{Name: "redirect_url", Type: schema.String, Required: true, Desc: "Full page URL or a path on the shop website (e.g. '/contact')"},
	},
	BehaviorSteps: []string{
		"Checks that the user's browser is connected",
		"Sends the redirectToPage command to the browser",
	},
	ResponseFormat: []Field{
		{Name: "redirected_to", Desc: "string - page URL"},
	},
	CriticalRules: []string{
		"NEVER ask 'Would you like to go there?'; redirect immediately",
		"Use redirect_to_product_page for products",
	},
}

var initiateProductOrder = Config{
	Name:      NameInitiateProductOrder,
	Purpose:   "Start ordering the product currently shown to the user.",
	WhenToUse: "Call when the user confirms interest in the product on screen (\"yes, that one\", \"I want this\", \"can I add bacon?\", \"what's the price?\").",
	BehaviorSteps: []string{
		"Loads full details of the pending product",
		"Hands the conversation to the ordering assistant for that product",
	},
	ValidationCheck: []string{
		"A product must have been opened with redirect_to_product_page first",
	},
	CriticalRules: []string{
		"Only call after a successful redirect_to_product_page",
		"If it fails with missing_pending_product, ask the user which product they want",
	},
}

var syncOrderOptions = Config{
	Name:      NameSyncOrderOptions,
	Purpose:   "Read the current customization, quantity and price from the user's screen.",
	WhenToUse: "Call first on entry and before describing or summarizing the current selections.",
	BehaviorSteps: []string{
		"Requests syncProductOptions from the browser",
		"Replaces the known order state with the response",
	},
	ResponseFormat: []Field{
		{Name: "summary", Desc: "string - order summary with option groups, selections and total"},
	},
	CriticalRules: []string{
		"You have no memory of selections; sync every time before summarizing",
		"The user may click the page directly, so earlier syncs go stale",
	},
}

var selectOption = Config{
	Name:      NameSelectOption,
	Purpose:   "Select one option of the product being customized.",
	WhenToUse: "Call when the user picks any visible option, including 'no X' options such as 'without cheese'.",
	Parameters: []Param{
		{Name: "group_id", Type: schema.Integer, Required: true, Desc: "Option group id from the product details or sync summary"},
		{Name: "option_id", Type: schema.Integer, Required: true, Desc: "Option id from the product details or sync summary"},
	},
	BehaviorSteps: []string{
		"Sends toggleOptionSelection with action 'select' to the browser",
	},
	ContextualAwareness: []string{
		"'Without X' means selecting the 'no X' option",
		"Respect each group's min/max selection rule",
	},
	ConfirmationTemplates: []string{
		"Added [option]. Anything else for [group]?",
	},
}

var unselectOption = Config{
	Name:      NameUnselectOption,
	Purpose:   "Remove a previously selected option of the product being customized.",
	WhenToUse: "Call only when the user wants to remove an option that is already selected ('take off the bacon').",
	Parameters: []Param{
		{Name: "group_id", Type: schema.Integer, Required: true, Desc: "Option group id"},
		{Name: "option_id", Type: schema.Integer, Required: true, Desc: "Option id"},
	},
	BehaviorSteps: []string{
		"Sends toggleOptionSelection with action 'unselect' to the browser",
	},
	ValidationCheck: []string{
		"Sync first if you are not sure the option is selected",
	},
}

var increaseProductQuantity = Config{
	Name:      NameIncreaseProductQuantity,
	Purpose:   "Increase the quantity of the product being ordered by one.",
	WhenToUse: "Call on a clear request for more ('two of these', 'make it three'). Call once per extra item.",
	BehaviorSteps: []string{
		"Sends increaseProductQuantity to the browser",
	},
}

var decreaseProductQuantity = Config{
	Name:      NameDecreaseProductQuantity,
	Purpose:   "Decrease the quantity of the product being ordered by one.",
	WhenToUse: "Call on a clear request for fewer ('just one', 'reduce it').",
	BehaviorSteps: []string{
		"Syncs the current quantity from the browser",
		"Refuses when the quantity is already 1",
		"Otherwise sends decreaseProductQuantity to the browser",
	},
	CriticalRules: []string{
		"Quantity never goes below 1; to drop the product use exit_ordering_task",
	},
}

var completeOrder = Config{
	Name:      NameCompleteOrder,
	Purpose:   "Add the product, as configured on screen, to the user's cart and finish ordering.",
	WhenToUse: "Call ONLY after explicit confirmation such as 'yes', 'add it', 'go ahead'.",
	BehaviorSteps: []string{
		"Sends addToCart to the browser",
		"On success hands the conversation back to the shopping assistant",
	},
	ResponseFormat: []Field{
		{Name: "message", Desc: "string - confirmation from the shop"},
		{Name: "product_name", Desc: "string"},
	},
	ConfirmationTemplates: []string{
		"Done! [product] is in your cart. Anything else?",
	},
	CriticalRules: []string{
		"Never call without explicit confirmation",
		"If it fails, tell the user the item was not added and offer to retry",
	},
}

var exitOrderingTask = Config{
	Name:      NameExitOrderingTask,
	Purpose:   "Stop ordering this product without adding anything to the cart.",
	WhenToUse: "Call when the user changes their mind, asks for something else, wants to navigate or asks an unrelated question.",
	Parameters: []Param{
		{Name: "exit_reason", Type: schema.String, Required: true, Desc: "Short reason the user is leaving the order"},
	},
	BehaviorSteps: []string{
		"Hands the conversation back to the shopping assistant",
		"Does not touch the cart",
	},
	CriticalRules: []string{
		"The product on screen IS the one the user chose; do not exit just because the original request was general",
	},
	Examples: []string{
		"User: \"Actually, do you have pizza?\"\n→ exit_ordering_task(exit_reason=\"wants to look for pizza\")",
	},
}

var endSession = Config{
	Name:      NameEndSession,
	Purpose:   "End the conversation.",
	WhenToUse: "Call when the user says goodbye or asks to stop talking.",
	BehaviorSteps: []string{
		"Marks the session as finished",
		"You then say a short goodbye and the connection closes",
	},
}

func declarations() []Config {
	return []Config{
		searchProducts,
		redirectToProductPage,
		redirectToWebsitePage,
		initiateProductOrder,
		syncOrderOptions,
		selectOption,
		unselectOption,
		increaseProductQuantity,
		decreaseProductQuantity,
		completeOrder,
		exitOrderingTask,
		endSession,
	}
}
