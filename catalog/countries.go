package catalog

type row struct {
	id        string
	name      string
	continent Continent
	upstream  string // empty: same as id
}

var table = []row{
	{"AF", "Afghanistan", Asia, ""},
	{"AL", "Albania", Europe, ""},
	{"DZ", "Algeria", Africa, ""},
	{"AD", "Andorra", Europe, ""},
	{"AO", "Angola", Africa, ""},
	{"AI", "Anguilla", NorthAmerica, ""},
	{"AG", "Antigua and Barbuda", NorthAmerica, ""},
	{"AR", "Argentina", SouthAmerica, ""},
	{"AM", "Armenia", Asia, ""},
	{"AW", "Aruba", NorthAmerica, ""},
	{"AU", "Australia", Oceania, ""},
	{"AT", "Austria", Europe, ""},
	{"AZ", "Azerbaijan", Asia, ""},
	{"BS", "Bahamas", NorthAmerica, ""},
	{"BH", "Bahrain", Asia, ""},
	{"BD", "Bangladesh", Asia, ""},
	{"BB", "Barbados", NorthAmerica, ""},
	{"BY", "Belarus", Europe, ""},
	{"BE", "Belgium", Europe, ""},
	{"BZ", "Belize", NorthAmerica, ""},
	{"BJ", "Benin", Africa, ""},
	{"BM", "Bermuda", NorthAmerica, ""},
	{"BT", "Bhutan", Asia, ""},
	{"BO", "Bolivia", SouthAmerica, ""},
	{"BQ", "Bonaire, Sint Eustatius and Saba", NorthAmerica, "Caribbean Netherlands"},
	{"BA", "Bosnia and Herzegovina", Europe, ""},
	{"BW", "Botswana", Africa, ""},
	{"BR", "Brazil", SouthAmerica, ""},
	{"VG", "British Virgin Islands", NorthAmerica, ""},
	{"BN", "Brunei Darussalam", Asia, ""},
	{"BG", "Bulgaria", Europe, ""},
	{"BF", "Burkina Faso", Africa, ""},
	{"BI", "Burundi", Africa, ""},
	{"CV", "Cabo Verde", Africa, ""},
	{"KH", "Cambodia", Asia, ""},
	{"CM", "Cameroon", Africa, ""},
	{"CA", "Canada", NorthAmerica, ""},
	{"KY", "Cayman Islands", NorthAmerica, ""},
	{"CF", "Central African Republic", Africa, ""},
	{"TD", "Chad", Africa, ""},
	{"CL", "Chile", SouthAmerica, ""},
	{"CN", "China", Asia, ""},
	{"CO", "Colombia", SouthAmerica, ""},
	{"KM", "Comoros", Africa, ""},
	{"CG", "Congo", Africa, ""},
	{"CD", "Congo, Democratic Republic of the", Africa, ""},
	{"CR", "Costa Rica", NorthAmerica, ""},
	{"CI", "Côte d'Ivoire", Africa, ""},
	{"HR", "Croatia", Europe, ""},
	{"CU", "Cuba", NorthAmerica, ""},
	{"CW", "Curaçao", NorthAmerica, ""},
	{"CY", "Cyprus", Europe, ""},
	{"CZ", "Czechia", Europe, ""},
	{"DK", "Denmark", Europe, ""},
	{"DJ", "Djibouti", Africa, ""},
	{"DM", "Dominica", NorthAmerica, ""},
	{"DO", "Dominican Republic", NorthAmerica, ""},
	{"EC", "Ecuador", SouthAmerica, ""},
	{"EG", "Egypt", Africa, ""},
	{"SV", "El Salvador", NorthAmerica, ""},
	{"GQ", "Equatorial Guinea", Africa, ""},
	{"ER", "Eritrea", Africa, ""},
	{"EE", "Estonia", Europe, ""},
	{"SZ", "Eswatini", Africa, ""},
	{"ET", "Ethiopia", Africa, ""},
	{"FK", "Falkland Islands", SouthAmerica, ""},
	{"FO", "Faroe Islands", Europe, ""},
	{"FJ", "Fiji", Oceania, ""},
	{"FI", "Finland", Europe, ""},
	{"FR", "France", Europe, ""},
	{"PF", "French Polynesia", Oceania, ""},
	{"GA", "Gabon", Africa, ""},
	{"GM", "Gambia", Africa, ""},
	{"GE", "Georgia", Asia, ""},
	{"DE", "Germany", Europe, ""},
	{"GH", "Ghana", Africa, ""},
	{"GI", "Gibraltar", Europe, ""},
	{"GR", "Greece", Europe, ""},
	{"GL", "Greenland", NorthAmerica, ""},
	{"GD", "Grenada", NorthAmerica, ""},
	{"GU", "Guam", Oceania, ""},
	{"GT", "Guatemala", NorthAmerica, ""},
	{"GG", "Guernsey", Europe, ""},
	{"GN", "Guinea", Africa, ""},
	{"GW", "Guinea-Bissau", Africa, ""},
	{"GY", "Guyana", SouthAmerica, ""},
	{"HT", "Haiti", NorthAmerica, ""},
	{"VA", "Holy See", Europe, ""},
	{"HN", "Honduras", NorthAmerica, ""},
	{"HU", "Hungary", Europe, ""},
	{"IS", "Iceland", Europe, ""},
	{"IN", "India", Asia, ""},
	{"ID", "Indonesia", Asia, ""},
	{"IR", "Iran", Asia, ""},
	{"IQ", "Iraq", Asia, ""},
	{"IE", "Ireland", Europe, ""},
	{"IM", "Isle of Man", Europe, ""},
	{"IL", "Israel", Asia, ""},
	{"IT", "Italy", Europe, ""},
	{"JM", "Jamaica", NorthAmerica, ""},
	{"JP", "Japan", Asia, ""},
	{"JE", "Jersey", Europe, ""},
	{"JO", "Jordan", Asia, ""},
	{"KZ", "Kazakhstan", Asia, ""},
	{"KE", "Kenya", Africa, ""},
	{"KI", "Kiribati", Oceania, ""},
	{"XK", "Kosovo", Europe, "Kosovo"},
	{"KW", "Kuwait", Asia, ""},
	{"KG", "Kyrgyzstan", Asia, ""},
	{"LA", "Laos", Asia, ""},
	{"LV", "Latvia", Europe, ""},
	{"LB", "Lebanon", Asia, ""},
	{"LS", "Lesotho", Africa, ""},
	{"LR", "Liberia", Africa, ""},
	{"LY", "Libya", Africa, ""},
	{"LI", "Liechtenstein", Europe, ""},
	{"LT", "Lithuania", Europe, ""},
	{"LU", "Luxembourg", Europe, ""},
	{"MG", "Madagascar", Africa, ""},
	{"MW", "Malawi", Africa, ""},
	{"MY", "Malaysia", Asia, ""},
	{"MV", "Maldives", Asia, ""},
	{"ML", "Mali", Africa, ""},
	{"MT", "Malta", Europe, ""},
	{"MH", "Marshall Islands", Oceania, ""},
	{"MR", "Mauritania", Africa, ""},
	{"MU", "Mauritius", Africa, ""},
	{"MX", "Mexico", NorthAmerica, ""},
	{"FM", "Micronesia", Oceania, ""},
	{"MD", "Moldova", Europe, ""},
	{"MC", "Monaco", Europe, ""},
	{"MN", "Mongolia", Asia, ""},
	{"ME", "Montenegro", Europe, ""},
	{"MS", "Montserrat", NorthAmerica, ""},
	{"MA", "Morocco", Africa, ""},
	{"MZ", "Mozambique", Africa, ""},
	{"MM", "Myanmar", Asia, ""},
	{"NA", "Namibia", Africa, ""},
	{"NR", "Nauru", Oceania, ""},
	{"NP", "Nepal", Asia, ""},
	{"NL", "Netherlands", Europe, ""},
	{"NC", "New Caledonia", Oceania, ""},
	{"NZ", "New Zealand", Oceania, ""},
	{"NI", "Nicaragua", NorthAmerica, ""},
	{"NE", "Niger", Africa, ""},
	{"NG", "Nigeria", Africa, ""},
	{"KP", "North Korea", Asia, ""},
	{"MK", "North Macedonia", Europe, ""},
	{"MP", "Northern Mariana Islands", Oceania, ""},
	{"NO", "Norway", Europe, ""},
	{"OM", "Oman", Asia, ""},
	{"PK", "Pakistan", Asia, ""},
	{"PW", "Palau", Oceania, ""},
	{"PS", "Palestine", Asia, ""},
	{"PA", "Panama", NorthAmerica, ""},
	{"PG", "Papua New Guinea", Oceania, ""},
	{"PY", "Paraguay", SouthAmerica, ""},
	{"PE", "Peru", SouthAmerica, ""},
	{"PH", "Philippines", Asia, ""},
	{"PL", "Poland", Europe, ""},
	{"PT", "Portugal", Europe, ""},
	{"PR", "Puerto Rico", NorthAmerica, ""},
	{"QA", "Qatar", Asia, ""},
	{"RO", "Romania", Europe, ""},
	{"RU", "Russia", Europe, ""},
	{"RW", "Rwanda", Africa, ""},
	{"KN", "Saint Kitts and Nevis", NorthAmerica, ""},
	{"LC", "Saint Lucia", NorthAmerica, ""},
	{"VC", "Saint Vincent and the Grenadines", NorthAmerica, ""},
	{"WS", "Samoa", Oceania, ""},
	{"SM", "San Marino", Europe, ""},
	{"ST", "Sao Tome and Principe", Africa, ""},
	{"SA", "Saudi Arabia", Asia, ""},
	{"SN", "Senegal", Africa, ""},
	{"RS", "Serbia", Europe, ""},
	{"SC", "Seychelles", Africa, ""},
	{"SL", "Sierra Leone", Africa, ""},
	{"SG", "Singapore", Asia, ""},
	{"SX", "Sint Maarten", NorthAmerica, ""},
	{"SK", "Slovakia", Europe, ""},
	{"SI", "Slovenia", Europe, ""},
	{"SB", "Solomon Islands", Oceania, ""},
	{"SO", "Somalia", Africa, ""},
	{"ZA", "South Africa", Africa, ""},
	{"KR", "South Korea", Asia, ""},
	{"SS", "South Sudan", Africa, ""},
	{"ES", "Spain", Europe, ""},
	{"LK", "Sri Lanka", Asia, ""},
	{"SD", "Sudan", Africa, ""},
	{"SR", "Suriname", SouthAmerica, ""},
	{"SE", "Sweden", Europe, ""},
	{"CH", "Switzerland", Europe, ""},
	{"SY", "Syria", Asia, ""},
	{"TW", "Taiwan", Asia, ""},
	{"TJ", "Tajikistan", Asia, ""},
	{"TZ", "Tanzania", Africa, ""},
	{"TH", "Thailand", Asia, ""},
	{"TL", "Timor-Leste", Asia, ""},
	{"TG", "Togo", Africa, ""},
	{"TO", "Tonga", Oceania, ""},
	{"TT", "Trinidad and Tobago", NorthAmerica, ""},
	{"TN", "Tunisia", Africa, ""},
	{"TR", "Turkey", Asia, ""},
	{"TC", "Turks and Caicos Islands", NorthAmerica, ""},
	{"TV", "Tuvalu", Oceania, ""},
	{"UG", "Uganda", Africa, ""},
	{"UA", "Ukraine", Europe, ""},
	{"AE", "United Arab Emirates", Asia, ""},
	{"GB", "United Kingdom", Europe, ""},
	{"US", "United States of America", NorthAmerica, ""},
	{"VI", "United States Virgin Islands", NorthAmerica, ""},
	{"UY", "Uruguay", SouthAmerica, ""},
	{"UZ", "Uzbekistan", Asia, ""},
	{"VU", "Vanuatu", Oceania, ""},
	{"VE", "Venezuela", SouthAmerica, ""},
	{"VN", "Vietnam", Asia, ""},
	{"EH", "Western Sahara", Africa, ""},
	{"YE", "Yemen", Asia, ""},
	{"ZM", "Zambia", Africa, ""},
	{"ZW", "Zimbabwe", Africa, ""},
}
