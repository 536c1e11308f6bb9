package models

// Enumerations transported as uppercase string constants on the wire.

// ElementType is the entity-kind discriminator for resources that are
// partitioned server-side, notably custom fields and their groups.
type ElementType string

const (
	ElementJournal          ElementType = "JOURNAL"
	ElementAccount          ElementType = "ACCOUNT"
	ElementInventoryArticle ElementType = "INVENTORY_ARTICLE"
	ElementInventoryAsset   ElementType = "INVENTORY_ASSET"
	ElementOrder            ElementType = "ORDER"
	ElementPerson           ElementType = "PERSON"
	ElementFile             ElementType = "FILE"
)

// ElementTypes is the full family, in the order list calls iterate it.
var ElementTypes = []ElementType{
	ElementJournal,
	ElementAccount,
	ElementInventoryArticle,
	ElementInventoryAsset,
	ElementOrder,
	ElementPerson,
	ElementFile,
}

// DataType is the value type of a custom field.
type DataType string

const (
	DataText     DataType = "TEXT"
	DataTextarea DataType = "TEXTAREA"
	DataCheckbox DataType = "CHECKBOX"
	DataDate     DataType = "DATE"
	DataCombobox DataType = "COMBOBOX"
	DataNumber   DataType = "NUMBER"
	DataAccount  DataType = "ACCOUNT"
	DataPerson   DataType = "PERSON"
)

// AddressType classifies a person address entry.
type AddressType string

const (
	AddressMain     AddressType = "MAIN"
	AddressInvoice  AddressType = "INVOICE"
	AddressDelivery AddressType = "DELIVERY"
	AddressOther    AddressType = "OTHER"
)

// ContactType classifies a person contact entry.
type ContactType string

const (
	ContactEmailWork     ContactType = "EMAIL_WORK"
	ContactEmailPrivate  ContactType = "EMAIL_PRIVATE"
	ContactPhoneWork     ContactType = "PHONE_WORK"
	ContactPhonePrivate  ContactType = "PHONE_PRIVATE"
	ContactMobileWork    ContactType = "MOBILE_WORK"
	ContactMobilePrivate ContactType = "MOBILE_PRIVATE"
	ContactFax           ContactType = "FAX"
	ContactWebsite       ContactType = "WEBSITE"
	ContactMessenger     ContactType = "MESSENGER"
	ContactOther         ContactType = "OTHER"
)

// Gender of a person title.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// Color of an order category or book template.
type Color string

const (
	ColorBlue   Color = "BLUE"
	ColorGreen  Color = "GREEN"
	ColorRed    Color = "RED"
	ColorYellow Color = "YELLOW"
	ColorOrange Color = "ORANGE"
	ColorBlack  Color = "BLACK"
	ColorGray   Color = "GRAY"
	ColorBrown  Color = "BROWN"
	ColorViolet Color = "VIOLET"
	ColorPink   Color = "PINK"
)

// OrderType distinguishes the order book a category belongs to.
type OrderType string

const (
	OrderSales    OrderType = "SALES"
	OrderPurchase OrderType = "PURCHASE"
)

// BookType is the posting direction of an order book entry.
type BookType string

const (
	BookDebit  BookType = "DEBIT"
	BookCredit BookType = "CREDIT"
)
