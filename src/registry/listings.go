package registry

import "github.com/username/notefolio/backend/src/models"

var defaultListings = []models.Listing{
	{Symbol: "RELIANCE", Name: "Reliance Industries Limited", ISIN: "INE002A01018"},
	{Symbol: "TCS", Name: "Tata Consultancy Services Limited", ISIN: "INE467B01029"},
	{Symbol: "INFY", Name: "Infosys Limited", ISIN: "INE009A01021"},
	{Symbol: "HDFCBANK", Name: "HDFC Bank Limited", ISIN: "INE040A01034"},
	{Symbol: "ICICIBANK", Name: "ICICI Bank Limited", ISIN: "INE090A01013"},
	{Symbol: "ITC", Name: "ITC Limited", ISIN: "INE154A01025"},
	{Symbol: "WIPRO", Name: "Wipro Limited", ISIN: "INE075A01022"},
	{Symbol: "BAJFINANCE", Name: "Bajaj Finance Limited", ISIN: "INE296A01024"},
	{Symbol: "MARUTI", Name: "Maruti Suzuki India Limited", ISIN: "INE585B01010"},
	{Symbol: "CMS", Name: "CMS Info Systems Limited", ISIN: "INE925R01014"},
	{Symbol: "ADANIPORTS", Name: "Adani Ports and Special Economic Zone Limited", ISIN: "INE742F01042"},
	{Symbol: "ASIANPAINT", Name: "Asian Paints Limited", ISIN: "INE021A01026"},
	{Symbol: "BAJAJFINSV", Name: "Bajaj Finserv Limited", ISIN: "INE918I01018"},
	{Symbol: "BHARTIARTL", Name: "Bharti Airtel Limited", ISIN: "INE397D01024"},
	{Symbol: "GREENPANEL", Name: "Greenpanel Industries Limited", ISIN: "INE08ZM01014"},
	{Symbol: "MUTHOOTFIN", Name: "Muthoot Finance Limited", ISIN: "INE414G01012"},
	{Symbol: "WONDERLA", Name: "Wonderla Holidays Limited", ISIN: "INE066O01014"},
}
